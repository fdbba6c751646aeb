package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// subjectFor turns a persistence id of the form
// "/sharding/{typeName}Shard/{shardId}" into a JetStream-safe subject
// by replacing "/" with "." and trimming the leading separator.
func subjectFor(persistenceID string) string {
	return strings.TrimPrefix(strings.ReplaceAll(persistenceID, "/", "."), ".")
}

// streamNameFor derives a stable stream name from a subject. JetStream
// stream names may not contain ".", so the subject's replaced with "_".
func streamNameFor(subject string) string {
	return "SHARDKEEPER_" + strings.ReplaceAll(subject, ".", "_")
}

// eventHeaderKind is the wire header carrying the event kind; the message
// body is just the raw entity id, keeping the journal subject's
// payload trivially inspectable from the NATS CLI.
const eventHeaderKind = "Shardkeeper-Event-Kind"

// NATSJournal is the default Journal backend: one JetStream stream per
// persistence id's subject, one message per event, replayed in
// publish order.
type NATSJournal struct {
	js jetstream.JetStream
}

// NewNATSJournal wraps an already-connected JetStream context.
func NewNATSJournal(js jetstream.JetStream) *NATSJournal {
	return &NATSJournal{js: js}
}

func (n *NATSJournal) ensureStream(ctx context.Context, subject string) (jetstream.Stream, error) {
	return n.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamNameFor(subject),
		Subjects:  []string{subject},
		Retention: jetstream.LimitsPolicy,
	})
}

func (n *NATSJournal) Append(ctx context.Context, persistenceID string, seq int64, event Event) error {
	subject := subjectFor(persistenceID)
	if _, err := n.ensureStream(ctx, subject); err != nil {
		return fmt.Errorf("journal: ensure stream for %q: %w", persistenceID, err)
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    []byte(event.ID),
		Header:  nats.Header{eventHeaderKind: {strconv.Itoa(int(event.Kind))}},
	}
	if _, err := n.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("journal: publish event for %q: %w", persistenceID, err)
	}
	return nil
}

func (n *NATSJournal) Replay(ctx context.Context, persistenceID string, fromSeq int64) ([]Event, int64, error) {
	subject := subjectFor(persistenceID)
	stream, err := n.ensureStream(ctx, subject)
	if err != nil {
		return nil, fromSeq, fmt.Errorf("journal: ensure stream for %q: %w", persistenceID, err)
	}

	cons, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fromSeq, fmt.Errorf("journal: create consumer for %q: %w", persistenceID, err)
	}

	var events []Event
	lastSeq := fromSeq
	for {
		msgs, err := cons.FetchNoWait(256)
		if err != nil {
			return nil, fromSeq, fmt.Errorf("journal: fetch for %q: %w", persistenceID, err)
		}
		count := 0
		for msg := range msgs.Messages() {
			count++
			meta, err := msg.Metadata()
			if err != nil {
				return nil, fromSeq, fmt.Errorf("journal: read metadata for %q: %w", persistenceID, err)
			}
			seq := int64(meta.Sequence.Stream)
			kindStr := msg.Headers().Get(eventHeaderKind)
			kind, _ := strconv.Atoi(kindStr)
			if seq > fromSeq {
				events = append(events, Event{Kind: EventKind(kind), ID: string(msg.Data()), Seq: seq})
			}
			if seq > lastSeq {
				lastSeq = seq
			}
			_ = msg.Ack()
		}
		if err := msgs.Error(); err != nil {
			return nil, fromSeq, fmt.Errorf("journal: drain fetch for %q: %w", persistenceID, err)
		}
		if count == 0 {
			break
		}
	}
	return events, lastSeq, nil
}

// NATSSnapshotStore backs SnapshotStore with a JetStream Key-Value
// bucket, keyed by persistence id, storing the JSON-encoded State.
type NATSSnapshotStore struct {
	js     jetstream.JetStream
	bucket string
}

// NewNATSSnapshotStore wraps an already-connected JetStream context.
// bucket is created lazily on first use.
func NewNATSSnapshotStore(js jetstream.JetStream, bucket string) *NATSSnapshotStore {
	return &NATSSnapshotStore{js: js, bucket: bucket}
}

type snapshotEnvelope struct {
	State State `json:"state"`
	Seq   int64 `json:"seq"`
}

func (n *NATSSnapshotStore) keyValue(ctx context.Context) (jetstream.KeyValue, error) {
	return n.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: n.bucket})
}

func keyFor(persistenceID string) string {
	return strings.ReplaceAll(strings.TrimPrefix(persistenceID, "/"), "/", ".")
}

func (n *NATSSnapshotStore) Save(ctx context.Context, persistenceID string, state State, seq int64) error {
	kv, err := n.keyValue(ctx)
	if err != nil {
		return fmt.Errorf("journal: open snapshot bucket %q: %w", n.bucket, err)
	}
	body, err := json.Marshal(snapshotEnvelope{State: state, Seq: seq})
	if err != nil {
		return fmt.Errorf("journal: encode snapshot for %q: %w", persistenceID, err)
	}
	if _, err := kv.Put(ctx, keyFor(persistenceID), body); err != nil {
		return fmt.Errorf("journal: save snapshot for %q: %w", persistenceID, err)
	}
	return nil
}

func (n *NATSSnapshotStore) Load(ctx context.Context, persistenceID string) (State, int64, bool, error) {
	kv, err := n.keyValue(ctx)
	if err != nil {
		return State{}, 0, false, fmt.Errorf("journal: open snapshot bucket %q: %w", n.bucket, err)
	}
	entry, err := kv.Get(ctx, keyFor(persistenceID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return State{}, 0, false, nil
	}
	if err != nil {
		return State{}, 0, false, fmt.Errorf("journal: load snapshot for %q: %w", persistenceID, err)
	}
	var env snapshotEnvelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return State{}, 0, false, fmt.Errorf("journal: decode snapshot for %q: %w", persistenceID, err)
	}
	return env.State, env.Seq, true, nil
}
