// Package shardconfig loads the environment-driven tunables the demo
// harness in cmd/shardnode uses to construct a Shard: the cap on
// buffered entity messages, snapshot cadence, entity restart back-off, which recovery
// strategy to pace remembered-entity restarts with, and how to reach
// NATS and an external coordinator.
package shardconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// RecoveryStrategyKind selects which recovery.Strategy a persistent
// Shard recovers remembered entities with.
type RecoveryStrategyKind string

const (
	RecoveryAllAtOnce   RecoveryStrategyKind = "all"
	RecoveryConstantRate RecoveryStrategyKind = "constant"
)

// Config holds every tunable the shardnode harness reads from the
// environment. The one field without an envDefault, CoordinatorAddr,
// is optional; left empty, no coordinator notifications are sent.
type Config struct {
	NodeAddr        string `env:"SHARDNODE_ADDR" envDefault:":8091"`
	CoordinatorAddr string `env:"SHARDNODE_COORDINATOR_ADDR"`
	NATSURL         string `env:"SHARDNODE_NATS_URL" envDefault:"nats://127.0.0.1:4222"`

	TypeName string `env:"SHARDNODE_TYPE_NAME" envDefault:"demo-entity"`
	ShardID  string `env:"SHARDNODE_SHARD_ID" envDefault:"shard-1"`

	BufferSize int `env:"SHARDNODE_BUFFER_SIZE" envDefault:"256"`

	Persistent     bool `env:"SHARDNODE_PERSISTENT" envDefault:"false"`
	SnapshotAfter  int           `env:"SHARDNODE_SNAPSHOT_AFTER" envDefault:"100"`
	RestartBackoff time.Duration `env:"SHARDNODE_RESTART_BACKOFF" envDefault:"1s"`

	RecoveryStrategy             RecoveryStrategyKind `env:"SHARDNODE_RECOVERY_STRATEGY" envDefault:"all"`
	RecoveryConstantFrequency    time.Duration        `env:"SHARDNODE_RECOVERY_FREQUENCY" envDefault:"100ms"`
	RecoveryConstantNumEntities  int                  `env:"SHARDNODE_RECOVERY_BATCH_SIZE" envDefault:"5"`

	LogLevel string `env:"SHARDNODE_LOG_LEVEL" envDefault:"info"`
}

// Load parses Config from the environment, applying the struct tag
// defaults for anything unset, and validates the result.
func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse shardnode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid shardnode config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the harness cannot act on.
func (c Config) Validate() error {
	if c.TypeName == "" {
		return fmt.Errorf("SHARDNODE_TYPE_NAME must not be empty")
	}
	if c.ShardID == "" {
		return fmt.Errorf("SHARDNODE_SHARD_ID must not be empty")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("SHARDNODE_BUFFER_SIZE must be > 0, got %d", c.BufferSize)
	}
	switch c.RecoveryStrategy {
	case RecoveryAllAtOnce, RecoveryConstantRate:
	default:
		return fmt.Errorf("SHARDNODE_RECOVERY_STRATEGY must be %q or %q, got %q", RecoveryAllAtOnce, RecoveryConstantRate, c.RecoveryStrategy)
	}
	if c.RecoveryStrategy == RecoveryConstantRate && c.RecoveryConstantNumEntities <= 0 {
		return fmt.Errorf("SHARDNODE_RECOVERY_BATCH_SIZE must be > 0 when using the constant-rate strategy, got %d", c.RecoveryConstantNumEntities)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("SHARDNODE_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	return nil
}

// ZerologLevel converts LogLevel into the zerolog.Level the harness
// configures its logger with.
func (c Config) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
