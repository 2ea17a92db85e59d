package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/quillfix/internal/config"
	"github.com/MrWong99/quillfix/internal/resilience"
	"github.com/MrWong99/quillfix/pkg/correction"
	"github.com/MrWong99/quillfix/pkg/correction/badgerstore"
	"github.com/MrWong99/quillfix/pkg/correction/postgres"
	"github.com/MrWong99/quillfix/pkg/correction/sqlite"
)

// registerBuiltinStores wires every storage backend that ships with quillfix
// into reg.
func registerBuiltinStores(reg *config.Registry, logger *slog.Logger) {
	reg.RegisterStore(config.BackendMemory, func(context.Context, config.StorageConfig) (correction.Store, error) {
		return correction.NewMemStore(), nil
	})
	reg.RegisterStore(config.BackendSQLite, func(ctx context.Context, cfg config.StorageConfig) (correction.Store, error) {
		path, err := config.ExpandPath(cfg.Path)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(ctx, path)
	})
	reg.RegisterStore(config.BackendPostgres, func(ctx context.Context, cfg config.StorageConfig) (correction.Store, error) {
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	})
	reg.RegisterStore(config.BackendBadger, func(_ context.Context, cfg config.StorageConfig) (correction.Store, error) {
		path, err := config.ExpandPath(cfg.Path)
		if err != nil {
			return nil, err
		}
		return badgerstore.Open(badgerstore.Config{
			Path:       path,
			SyncWrites: true,
			Logger:     logger.With("component", "badger"),
		})
	})
}

// openStore opens the configured backend behind retries and a circuit
// breaker. The caller must Close the returned store.
func (c *cli) openStore(ctx context.Context) (*resilience.GuardedStore, error) {
	reg := config.NewRegistry()
	registerBuiltinStores(reg, c.logger)

	sc := c.cfg.Storage
	inner, err := reg.CreateStore(ctx, sc)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("storage opened", "backend", sc.Backend)

	return resilience.NewGuardedStore(inner, resilience.GuardConfig{
		Attempts: sc.Retry.Attempts,
		Delay:    sc.Retry.Delay,
		Breaker: resilience.CircuitBreakerConfig{
			Name:         fmt.Sprintf("%s-store", sc.Backend),
			MaxFailures:  sc.Breaker.MaxFailures,
			ResetTimeout: sc.Breaker.ResetTimeout,
		},
		Logger: c.logger,
	}), nil
}
