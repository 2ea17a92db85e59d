package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/quillfix/pkg/correction"
)

// ErrBackendNotRegistered is returned by [Registry.CreateStore] when no
// factory has been registered under the requested backend.
var ErrBackendNotRegistered = errors.New("config: storage backend not registered")

// StoreFactory opens a [correction.Store] from the storage section of the
// config.
type StoreFactory func(ctx context.Context, cfg StorageConfig) (correction.Store, error)

// Registry maps storage backend names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stores map[StorageBackend]StoreFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{stores: make(map[StorageBackend]StoreFactory)}
}

// RegisterStore registers a store factory under backend.
// Subsequent calls with the same backend overwrite the previous registration.
func (r *Registry) RegisterStore(backend StorageBackend, factory StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[backend] = factory
}

// CreateStore instantiates the store named by cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory is registered for it.
func (r *Registry) CreateStore(ctx context.Context, cfg StorageConfig) (correction.Store, error) {
	r.mu.RLock()
	factory, ok := r.stores[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, cfg.Backend)
	}
	store, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: open %s store: %w", cfg.Backend, err)
	}
	return store, nil
}

// Backends returns the registered backend names in sorted order.
func (r *Registry) Backends() []StorageBackend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StorageBackend, 0, len(r.stores))
	for b := range r.stores {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}
