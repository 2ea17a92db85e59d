package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/quillfix/internal/config"
	"github.com/MrWong99/quillfix/internal/learning"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("quillfix %s: %v\nstderr:\n%s", strings.Join(args, " "), err, errOut.String())
	}
	return out.String()
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "quillfix.yaml")
	yaml := "server:\n  log_level: warn\nstorage:\n  backend: sqlite\n  path: " +
		filepath.Join(dir, "corrections.db") + "\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLearnApplyListForget(t *testing.T) {
	cfg := writeConfig(t)

	for range 3 {
		out := execute(t, "--config", cfg, "learn", "I recieve teh mail", "I receive the mail")
		if !strings.Contains(out, "recieve -> receive") || !strings.Contains(out, "teh -> the") {
			t.Fatalf("learn output = %q, want both corrections", out)
		}
	}

	out := execute(t, "--config", cfg, "apply", "Teh", "letter", "i", "recieve")
	if got, want := strings.TrimSpace(out), "The letter i receive"; got != want {
		t.Errorf("apply = %q, want %q", got, want)
	}

	var applied struct {
		Text    string                       `json:"text"`
		Applied []learning.AppliedCorrection `json:"applied"`
	}
	out = execute(t, "--config", cfg, "--json", "apply", "TEH END")
	if err := json.Unmarshal([]byte(out), &applied); err != nil {
		t.Fatalf("decode apply json %q: %v", out, err)
	}
	if applied.Text != "THE END" || len(applied.Applied) != 1 || applied.Applied[0].Position != 0 {
		t.Errorf("apply --json = %+v", applied)
	}

	out = execute(t, "--config", cfg, "list")
	for _, want := range []string{"ORIGINAL", "recieve", "receive", "teh", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	out = execute(t, "--config", cfg, "forget", "teh")
	if !strings.Contains(out, "removed 1") {
		t.Errorf("forget output = %q, want removed 1", out)
	}
	out = execute(t, "--config", cfg, "forget", "teh", "the")
	if !strings.Contains(out, "removed 0") {
		t.Errorf("second forget output = %q, want removed 0", out)
	}

	out = execute(t, "--config", cfg, "apply", "teh end")
	if got := strings.TrimSpace(out); got != "teh end" {
		t.Errorf("apply after forget = %q, want unchanged", got)
	}
}

func TestApplyReadsStdin(t *testing.T) {
	cfg := writeConfig(t)
	for range 3 {
		execute(t, "--config", cfg, "learn", "adn then", "and then")
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("cats adn dogs\n"))
	cmd.SetArgs([]string{"--config", cfg, "apply"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "cats and dogs" {
		t.Errorf("apply = %q, want %q", got, "cats and dogs")
	}
}

func TestMissingConfigFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "list"})
	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want config not found", err)
	}
}

func TestApplyConfigChange(t *testing.T) {
	c := &cli{logLevel: new(slog.LevelVar)}
	c.logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: c.logLevel}))
	engine := learning.New()

	c.applyConfigChange(engine, config.ConfigDiff{
		LogLevelChanged:      true,
		NewLogLevel:          config.LogDebug,
		MinConfidenceChanged: true,
		NewMinConfidence:     0.9,
	})

	if got := c.logLevel.Level(); got != slog.LevelDebug {
		t.Errorf("log level = %v, want %v", got, slog.LevelDebug)
	}
	if got := engine.MinConfidence(); got != 0.9 {
		t.Errorf("MinConfidence() = %v, want 0.9", got)
	}
}

func TestServe_WatcherFailureOpensNoListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := config.Default()
	cfg.Server.ListenAddr = addr
	cfg.Storage.Backend = config.BackendMemory
	cfg.Telemetry.MetricsEnabled = false

	// The file was loaded at startup and has since disappeared, so the
	// watcher's initial load fails.
	c := &cli{
		cfgFile:  filepath.Join(t.TempDir(), "gone.yaml"),
		cfg:      cfg,
		logLevel: new(slog.LevelVar),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	done := make(chan error, 1)
	go func() { done <- c.serve(context.Background()) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "watcher initial load") {
			t.Fatalf("serve = %v, want watcher initial load error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the watcher failed")
	}

	ln, err = net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen on %s after serve returned: %v", addr, err)
	}
	ln.Close()
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := slogLevel(tc.in); got != tc.want {
			t.Errorf("slogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	if !strings.HasPrefix(out, "quillfix ") {
		t.Errorf("version output = %q", out)
	}
}
