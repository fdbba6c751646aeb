// Package main implements shardnode, the demo harness that wires a
// single Shard (optionally in remember-entities mode) to NATS
// JetStream for durability, a Prometheus collector for metrics, and a
// small HTTP admin surface for local testing.
//
// Configuration is entirely environment-driven; see
// internal/shardconfig for the full set of SHARDNODE_* variables.
//
// Example usage:
//
//	SHARDNODE_TYPE_NAME=account \
//	SHARDNODE_SHARD_ID=shard-1 \
//	SHARDNODE_PERSISTENT=true \
//	SHARDNODE_NATS_URL=nats://127.0.0.1:4222 \
//	./shardnode
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dreamware/shardkeeper/internal/journal"
	"github.com/dreamware/shardkeeper/internal/metrics"
	"github.com/dreamware/shardkeeper/internal/recovery"
	"github.com/dreamware/shardkeeper/internal/shard"
	"github.com/dreamware/shardkeeper/internal/shardconfig"
	"github.com/dreamware/shardkeeper/internal/storage"
	"github.com/dreamware/shardkeeper/internal/transport"
)

// logFatal is a variable to allow mocking log.Fatal-equivalent
// behavior in tests without terminating the test process.
var logFatal = func(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	cfg, err := shardconfig.Load()
	if err != nil {
		logFatal("shardnode: %v", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(cfg.ZerologLevel()).
		With().Timestamp().Str("component", "shardnode").Logger()

	collector := metrics.NewCollector()
	reg := newWorkerRegistry()
	store := storage.NewEntityStore()
	notifier := transport.NewNotifier(cfg.CoordinatorAddr, cfg.NodeAddr)

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logFatal("shardnode: connect to NATS at %s: %v", cfg.NATSURL, err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		logFatal("shardnode: create JetStream context: %v", err)
	}

	shardCfg := shard.Config{
		TypeName:            cfg.TypeName,
		ShardID:             cfg.ShardID,
		BufferSize:          cfg.BufferSize,
		HandOffStopMessage:  stopEntity{},
		ExtractEntityID:     extractEntityID,
		EntityProps:         newEntityProps(reg, store, logger),
		HandOffStopperProps: newHandOffStopperProps(reg, logger),
		DeadLetters: func(message any, reason string) {
			logger.Warn().Str("reason", reason).Interface("message", message).Msg("dead letter")
		},
		Logger:  logger,
		Metrics: collector,
	}

	parent := &coordinatorParent{notifier: notifier, typeName: cfg.TypeName}

	var s *shard.Shard
	if cfg.Persistent {
		s = shard.NewPersistent(shardCfg, parent, shard.PersistentOptions{
			Journal:          journal.NewNATSJournal(js),
			Snapshots:        journal.NewNATSSnapshotStore(js, "shardkeeper-snapshots"),
			SnapshotAfter:    cfg.SnapshotAfter,
			RestartBackoff:   cfg.RestartBackoff,
			RecoveryStrategy: recoveryStrategyFor(cfg),
		})
	} else {
		s = shard.New(shardCfg, parent)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	mux := adminMux(s, reg, promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              cfg.NodeAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.NodeAddr).Msg("shardnode listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("shardnode: listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shardnode shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("admin server shutdown error")
	}

	cancel()
	<-s.Stopped()
	logger.Info().Msg("shardnode stopped")
}

func recoveryStrategyFor(cfg shardconfig.Config) recovery.Strategy {
	if cfg.RecoveryStrategy == shardconfig.RecoveryConstantRate {
		return recovery.NewConstantRate(cfg.RecoveryConstantFrequency, cfg.RecoveryConstantNumEntities)
	}
	return recovery.NewAllAtOnce()
}

// coordinatorParent receives a Shard's ShardInitialized/ShardStopped
// notifications and forwards them to an external coordinator, if one
// is configured.
type coordinatorParent struct {
	notifier *transport.Notifier
	typeName string
}

// Deliver is called from the Shard's own mailbox goroutine (via its
// reply helper), so the actual HTTP call is pushed onto a side
// goroutine to avoid blocking shard processing on a slow or dead
// coordinator.
func (p *coordinatorParent) Deliver(message any, _ shard.Sender) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		switch msg := message.(type) {
		case shard.ShardInitialized:
			if err := p.notifier.ShardInitialized(ctx, p.typeName, msg.ShardID); err != nil {
				fmt.Fprintf(os.Stderr, "shardnode: notify ShardInitialized: %v\n", err)
			}
		case shard.ShardStopped:
			if err := p.notifier.ShardStopped(ctx, p.typeName, msg.ShardID); err != nil {
				fmt.Fprintf(os.Stderr, "shardnode: notify ShardStopped: %v\n", err)
			}
		}
	}()
}
