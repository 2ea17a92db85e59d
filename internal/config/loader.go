package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.MaxTextBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_text_bytes %d must be positive", cfg.Server.MaxTextBytes))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %v must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Learning
	l := cfg.Learning
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"learning.alignment_threshold", l.AlignmentThreshold},
		{"learning.correction_threshold", l.CorrectionThreshold},
		{"learning.min_confidence", l.MinConfidence},
	} {
		if f.value < 0 || f.value > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", f.name, f.value))
		}
	}
	if l.MaxLengthDiff < 0 {
		errs = append(errs, fmt.Errorf("learning.max_length_diff %d must not be negative", l.MaxLengthDiff))
	}
	if !l.LoadPolicy.IsValid() {
		errs = append(errs, fmt.Errorf("learning.load_policy %q is invalid; valid values: fallback-empty, propagate", l.LoadPolicy))
	}
	if l.CorrectionThreshold < l.AlignmentThreshold {
		slog.Warn("learning.correction_threshold is below alignment_threshold; every aligned pair will be learned",
			"correction_threshold", l.CorrectionThreshold,
			"alignment_threshold", l.AlignmentThreshold,
		)
	}

	// Storage
	s := cfg.Storage
	if !s.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: memory, sqlite, postgres, badger", s.Backend))
	}
	if s.Backend == BackendPostgres && s.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when backend is postgres"))
	}
	if s.Backend == BackendBadger && s.Path == "" {
		errs = append(errs, errors.New("storage.path is required when backend is badger"))
	}
	if s.Retry.Attempts == 0 {
		errs = append(errs, errors.New("storage.retry.attempts must be at least 1"))
	}
	if s.Retry.Delay < 0 {
		errs = append(errs, fmt.Errorf("storage.retry.delay %v must not be negative", s.Retry.Delay))
	}
	if s.Breaker.MaxFailures <= 0 {
		errs = append(errs, fmt.Errorf("storage.breaker.max_failures %d must be positive", s.Breaker.MaxFailures))
	}
	if s.Breaker.ResetTimeout <= 0 {
		errs = append(errs, fmt.Errorf("storage.breaker.reset_timeout %v must be positive", s.Breaker.ResetTimeout))
	}
	if s.Backend == BackendMemory {
		slog.Warn("storage.backend is memory; learned corrections are lost on restart")
	}

	// Telemetry
	if cfg.Telemetry.ServiceName == "" {
		errs = append(errs, errors.New("telemetry.service_name is required"))
	}

	return errors.Join(errs...)
}

// ExpandPath replaces a leading "~/" in p with the user's home directory.
func ExpandPath(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: expand %q: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
