// Package config provides the configuration schema, loader, hot-reload
// watcher and storage backend registry for quillfix.
package config

import (
	"time"

	"github.com/MrWong99/quillfix/internal/learning"
)

// LogLevel controls log verbosity for quillfix.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StorageBackend selects where corrections are persisted.
type StorageBackend string

const (
	// BackendMemory keeps corrections in process memory only.
	BackendMemory StorageBackend = "memory"

	// BackendSQLite stores corrections in a local SQLite file.
	BackendSQLite StorageBackend = "sqlite"

	// BackendPostgres stores corrections in a shared PostgreSQL database.
	BackendPostgres StorageBackend = "postgres"

	// BackendBadger stores corrections in an embedded BadgerDB directory.
	BackendBadger StorageBackend = "badger"
)

// IsValid reports whether b is a recognised storage backend.
func (b StorageBackend) IsValid() bool {
	switch b {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendBadger:
		return true
	}
	return false
}

// Config is the root configuration structure for quillfix.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Learning  LearningConfig  `yaml:"learning"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxTextBytes caps the size of text accepted by the learn and apply
	// endpoints.
	MaxTextBytes int64 `yaml:"max_text_bytes"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LearningConfig tunes the learning engine.
type LearningConfig struct {
	// AlignmentThreshold is the minimum similarity for two words to be
	// aligned directly.
	AlignmentThreshold float64 `yaml:"alignment_threshold"`

	// CorrectionThreshold is the minimum similarity for an aligned pair to
	// be learned.
	CorrectionThreshold float64 `yaml:"correction_threshold"`

	// MinConfidence is the confidence a correction needs before it is
	// applied. Hot-reloadable.
	MinConfidence float64 `yaml:"min_confidence"`

	// MaxLengthDiff is the largest length difference, in characters, between
	// a typo and its correction.
	MaxLengthDiff int `yaml:"max_length_diff"`

	// LoadPolicy decides what happens when the startup load from storage
	// fails.
	LoadPolicy learning.LoadPolicy `yaml:"load_policy"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend names the registered store implementation.
	Backend StorageBackend `yaml:"backend"`

	// Path is the SQLite file or Badger directory. A leading "~/" is
	// expanded to the user's home directory.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Retry configures retries of idempotent store operations.
	Retry RetryConfig `yaml:"retry"`

	// Breaker configures the circuit breaker in front of the store.
	Breaker BreakerConfig `yaml:"breaker"`
}

// RetryConfig configures store retries.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts uint `yaml:"attempts"`

	// Delay is the base backoff delay.
	Delay time.Duration `yaml:"delay"`
}

// BreakerConfig configures the store circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// TelemetryConfig controls OpenTelemetry setup.
type TelemetryConfig struct {
	// ServiceName is reported as the OTel service.name resource attribute.
	ServiceName string `yaml:"service_name"`

	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// Default returns the configuration used for every field a config file
// leaves out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			LogLevel:        LogInfo,
			MaxTextBytes:    64 << 10,
			ShutdownTimeout: 10 * time.Second,
		},
		Learning: LearningConfig{
			AlignmentThreshold:  learning.DefaultAlignmentThreshold,
			CorrectionThreshold: learning.DefaultCorrectionThreshold,
			MinConfidence:       learning.DefaultMinConfidence,
			MaxLengthDiff:       learning.DefaultMaxLengthDiff,
			LoadPolicy:          learning.LoadFallbackEmpty,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Path:    "~/.quillfix/quillfix.db",
			Retry: RetryConfig{
				Attempts: 3,
				Delay:    100 * time.Millisecond,
			},
			Breaker: BreakerConfig{
				MaxFailures:  5,
				ResetTimeout: 30 * time.Second,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "quillfix",
			MetricsEnabled: true,
		},
	}
}

// EngineOptions translates the learning section into engine options.
func (c LearningConfig) EngineOptions() []learning.Option {
	return []learning.Option{
		learning.WithAlignmentThreshold(c.AlignmentThreshold),
		learning.WithCorrectionThreshold(c.CorrectionThreshold),
		learning.WithMinConfidence(c.MinConfidence),
		learning.WithMaxLengthDiff(c.MaxLengthDiff),
		learning.WithLoadPolicy(c.LoadPolicy),
	}
}
