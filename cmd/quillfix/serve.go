package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/quillfix/internal/config"
	"github.com/MrWong99/quillfix/internal/health"
	"github.com/MrWong99/quillfix/internal/learning"
	"github.com/MrWong99/quillfix/internal/observe"
	"github.com/MrWong99/quillfix/internal/server"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the correction HTTP API",
		Long: `Start the quillfix HTTP API.

The server loads every stored correction at or above the minimum confidence
into memory, then serves learn and apply requests. When started with
--config, edits to the file are picked up at runtime: log_level and
min_confidence apply immediately, everything else is logged as needing a
restart.

Stop it with Ctrl+C or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg := c.cfg
	log := c.logger

	log.Info("quillfix starting",
		"version", buildVersion(),
		"config", c.cfgFile,
		"listen_addr", cfg.Server.ListenAddr,
		"storage", cfg.Storage.Backend,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	if cfg.Telemetry.MetricsEnabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: buildVersion(),
			StorageBackend: string(cfg.Storage.Backend),
			MinConfidence:  cfg.Learning.MinConfidence,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				log.Warn("telemetry shutdown error", "err", err)
			}
		}()
	}
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// ── Storage and engine ────────────────────────────────────────────────────
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("storage close error", "err", err)
		}
	}()

	opts := append(cfg.Learning.EngineOptions(),
		learning.WithLogger(log),
		learning.WithMetrics(metrics),
	)
	engine, err := learning.FromStore(ctx, store, opts...)
	if err != nil {
		return err
	}

	unregister, err := metrics.ObserveCacheEntries(engine.CacheSize)
	if err != nil {
		return fmt.Errorf("register cache gauge: %w", err)
	}
	defer func() { _ = unregister() }()

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithLogger(log),
		server.WithMaxTextBytes(cfg.Server.MaxTextBytes),
		server.WithMetrics(metrics),
		server.WithHealthCheckers(
			health.StoreChecker("store", store),
			health.BreakerChecker("store_breaker", store.Breaker()),
		),
	}
	if cfg.Telemetry.MetricsEnabled {
		srvOpts = append(srvOpts, server.WithMetricsHandler(promhttp.Handler()))
	}
	srv := server.New(engine, srvOpts...)

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Built before anything is started so a failure leaves no listener open.
	var watcher *config.Watcher
	if c.cfgFile != "" {
		watcher, err = config.NewWatcher(c.cfgFile, func(old, new *config.Config) {
			c.applyConfigChange(engine, config.Diff(old, new))
		}, config.WithWatcherLogger(log))
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.ListenAddr, cfg.Server.ShutdownTimeout)
	})
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	log.Info("server ready, press Ctrl+C to shut down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("goodbye")
	return nil
}

// applyConfigChange applies the hot-reloadable parts of d.
func (c *cli) applyConfigChange(engine *learning.Engine, d config.ConfigDiff) {
	if d.LogLevelChanged {
		c.logLevel.Set(slogLevel(d.NewLogLevel))
		c.logger.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.MinConfidenceChanged {
		engine.SetMinConfidence(d.NewMinConfidence)
		c.logger.Info("minimum confidence changed", "min_confidence", engine.MinConfidence())
	}
	if len(d.RestartRequired) > 0 {
		c.logger.Warn("config changes need a restart to take effect", "keys", d.RestartRequired)
	}
}
