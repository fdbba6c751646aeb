package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPostJSON(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse int
		serverBody     string
		requestBody    interface{}
		responseBody   interface{}
		expectError    bool
		contextTimeout bool
	}{
		{
			name:           "successful POST with response",
			serverResponse: http.StatusOK,
			serverBody:     `{"status":"ok"}`,
			requestBody:    map[string]string{"test": "data"},
			responseBody:   &map[string]string{},
			expectError:    false,
		},
		{
			name:           "successful POST without response body",
			serverResponse: http.StatusNoContent,
			serverBody:     "",
			requestBody:    map[string]string{"test": "data"},
			responseBody:   nil,
			expectError:    false,
		},
		{
			name:           "server error response",
			serverResponse: http.StatusInternalServerError,
			serverBody:     `{"error":"internal error"}`,
			requestBody:    map[string]string{"test": "data"},
			responseBody:   nil,
			expectError:    true,
		},
		{
			name:           "context timeout",
			serverResponse: http.StatusOK,
			serverBody:     `{"status":"ok"}`,
			requestBody:    map[string]string{"test": "data"},
			responseBody:   nil,
			expectError:    true,
			contextTimeout: true,
		},
		{
			name:           "unmarshalable request body",
			serverResponse: http.StatusOK,
			serverBody:     `{"status":"ok"}`,
			requestBody:    make(chan int),
			responseBody:   nil,
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("expected Content-Type application/json, got %s", ct)
				}
				if tt.contextTimeout {
					time.Sleep(100 * time.Millisecond)
				}
				w.WriteHeader(tt.serverResponse)
				if tt.serverBody != "" {
					w.Write([]byte(tt.serverBody))
				}
			}))
			defer server.Close()

			ctx := context.Background()
			if tt.contextTimeout {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, 1*time.Millisecond)
				defer cancel()
			}

			err := PostJSON(ctx, server.URL, tt.requestBody, tt.responseBody)

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.expectError && tt.responseBody != nil {
				respMap := tt.responseBody.(*map[string]string)
				if (*respMap)["status"] != "ok" {
					t.Errorf("expected response status 'ok', got %v", *respMap)
				}
			}
		})
	}
}

func TestPostJSONInvalidURL(t *testing.T) {
	ctx := context.Background()

	if err := PostJSON(ctx, "://invalid-url", map[string]string{"test": "data"}, nil); err == nil {
		t.Error("expected error for invalid URL, got none")
	}
	if err := PostJSON(ctx, "http://localhost:99999", map[string]string{"test": "data"}, nil); err == nil {
		t.Error("expected error for unreachable server, got none")
	}
}

func TestGetJSON(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse int
		serverBody     string
		responseBody   interface{}
		expectError    bool
		contextTimeout bool
	}{
		{
			name:           "successful GET",
			serverResponse: http.StatusOK,
			serverBody:     `{"data":"test","value":123}`,
			responseBody:   &map[string]interface{}{},
			expectError:    false,
		},
		{
			name:           "not found error",
			serverResponse: http.StatusNotFound,
			serverBody:     `{"error":"not found"}`,
			responseBody:   &map[string]interface{}{},
			expectError:    true,
		},
		{
			name:           "context timeout",
			serverResponse: http.StatusOK,
			serverBody:     `{"data":"test"}`,
			responseBody:   &map[string]interface{}{},
			expectError:    true,
			contextTimeout: true,
		},
		{
			name:           "invalid JSON response",
			serverResponse: http.StatusOK,
			serverBody:     `{invalid json}`,
			responseBody:   &map[string]interface{}{},
			expectError:    true,
		},
		{
			name:           "redirect response",
			serverResponse: http.StatusMovedPermanently,
			serverBody:     "",
			responseBody:   &map[string]interface{}{},
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if tt.contextTimeout {
					time.Sleep(100 * time.Millisecond)
				}
				w.WriteHeader(tt.serverResponse)
				if tt.serverBody != "" {
					w.Write([]byte(tt.serverBody))
				}
			}))
			defer server.Close()

			ctx := context.Background()
			if tt.contextTimeout {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, 1*time.Millisecond)
				defer cancel()
			}

			err := GetJSON(ctx, server.URL, tt.responseBody)

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.expectError && tt.responseBody != nil {
				respMap := tt.responseBody.(*map[string]interface{})
				if (*respMap)["data"] != "test" {
					t.Errorf("expected data 'test', got %v", (*respMap)["data"])
				}
				if (*respMap)["value"] != float64(123) {
					t.Errorf("expected value 123, got %v", (*respMap)["value"])
				}
			}
		})
	}
}

func TestGetJSONInvalidURL(t *testing.T) {
	ctx := context.Background()
	var result map[string]interface{}

	if err := GetJSON(ctx, "://invalid-url", &result); err == nil {
		t.Error("expected error for invalid URL, got none")
	}
	if err := GetJSON(ctx, "http://localhost:99999", &result); err == nil {
		t.Error("expected error for unreachable server, got none")
	}
}

func TestHTTPClient(t *testing.T) {
	if httpClient.Timeout != 5*time.Second {
		t.Errorf("expected HTTP client timeout of 5s, got %v", httpClient.Timeout)
	}
}

func TestNotifier_ShardInitializedPostsToCoordinator(t *testing.T) {
	var gotPath string
	var gotBody ShardInitializedNotification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		decodeJSONBody(t, r, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(serverAddr(server), "node-1")
	if err := n.ShardInitialized(context.Background(), "account", "shard-7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/shards/initialized" {
		t.Errorf("expected path /shards/initialized, got %s", gotPath)
	}
	want := ShardInitializedNotification{NodeAddr: "node-1", TypeName: "account", ShardID: "shard-7"}
	if gotBody != want {
		t.Errorf("expected body %+v, got %+v", want, gotBody)
	}
}

func TestNotifier_ShardStoppedPostsToCoordinator(t *testing.T) {
	var gotPath string
	var gotBody ShardStoppedNotification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		decodeJSONBody(t, r, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(serverAddr(server), "node-1")
	if err := n.ShardStopped(context.Background(), "account", "shard-7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/shards/stopped" {
		t.Errorf("expected path /shards/stopped, got %s", gotPath)
	}
	want := ShardStoppedNotification{NodeAddr: "node-1", TypeName: "account", ShardID: "shard-7"}
	if gotBody != want {
		t.Errorf("expected body %+v, got %+v", want, gotBody)
	}
}

func TestNotifier_NilOrEmptyCoordinatorAddrIsNoOp(t *testing.T) {
	var n *Notifier
	if err := n.ShardInitialized(context.Background(), "account", "shard-7"); err != nil {
		t.Errorf("nil Notifier should be a no-op, got error: %v", err)
	}

	empty := NewNotifier("", "node-1")
	if err := empty.ShardStopped(context.Background(), "account", "shard-7"); err != nil {
		t.Errorf("empty CoordinatorAddr should be a no-op, got error: %v", err)
	}
}

func decodeJSONBody(t *testing.T, r *http.Request, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
}

func serverAddr(server *httptest.Server) string {
	return server.Listener.Addr().String()
}
