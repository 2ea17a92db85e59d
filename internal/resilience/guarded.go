package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/MrWong99/quillfix/pkg/correction"
)

// Compile-time interface checks.
var (
	_ correction.Store   = (*GuardedStore)(nil)
	_ correction.Lister  = (*GuardedStore)(nil)
	_ correction.Deleter = (*GuardedStore)(nil)
	_ correction.Counter = (*GuardedStore)(nil)
	_ correction.Pinger  = (*GuardedStore)(nil)
	_ io.Closer          = (*GuardedStore)(nil)
)

// GuardConfig configures a [GuardedStore].
type GuardConfig struct {
	// Attempts is the total number of tries for idempotent operations,
	// including the first one. Default: 3.
	Attempts uint

	// Delay is the base delay between retries; later retries back off
	// exponentially from it. Default: 100ms.
	Delay time.Duration

	// MaxDelay caps the backoff. Default: 2s.
	MaxDelay time.Duration

	// Breaker configures the circuit breaker placed in front of the store.
	Breaker CircuitBreakerConfig

	// Logger receives retry notices. Default: [slog.Default].
	Logger *slog.Logger
}

// GuardedStore wraps a [correction.Store] with a [CircuitBreaker] and retries.
//
// Reads (loading, listing, counting, pinging) are retried up to
// GuardConfig.Attempts times. Writes go through the breaker exactly once:
// an upsert that failed after the backend committed it would otherwise be
// counted twice, inflating the occurrence count and with it the confidence.
// Deletes are idempotent and retried.
//
// Nothing is retried once the breaker is open or ctx is done.
type GuardedStore struct {
	inner    correction.Store
	breaker  *CircuitBreaker
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
	logger   *slog.Logger
}

// NewGuardedStore wraps inner. Zero-value config fields take their defaults.
func NewGuardedStore(inner correction.Store, cfg GuardConfig) *GuardedStore {
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "correction-store"
	}
	if cfg.Breaker.Logger == nil {
		cfg.Breaker.Logger = cfg.Logger
	}
	return &GuardedStore{
		inner:    inner,
		breaker:  NewCircuitBreaker(cfg.Breaker),
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		maxDelay: cfg.MaxDelay,
		logger:   cfg.Logger,
	}
}

// Breaker exposes the circuit breaker, mainly for readiness reporting.
func (g *GuardedStore) Breaker() *CircuitBreaker { return g.breaker }

// Unwrap returns the wrapped store.
func (g *GuardedStore) Unwrap() correction.Store { return g.inner }

// retrying runs fn through the breaker with retries.
func (g *GuardedStore) retrying(ctx context.Context, op string, fn func() error) error {
	err := retry.Do(
		func() error {
			return g.breaker.Execute(fn)
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(g.delay),
		retry.MaxDelay(g.maxDelay),
		retry.MaxJitter(g.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrCircuitOpen) &&
				!errors.Is(err, correction.ErrNotFound) &&
				ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Warn("resilience: retrying store operation",
				"op", op, "attempt", n+1, "err", err)
		}),
	)
	return g.wrap(op, err)
}

// once runs fn through the breaker without retries.
func (g *GuardedStore) once(op string, fn func() error) error {
	return g.wrap(op, g.breaker.Execute(fn))
}

// wrap ensures every failure, including [ErrCircuitOpen], is reported as a
// storage error.
func (g *GuardedStore) wrap(op string, err error) error {
	if err == nil || errors.Is(err, correction.ErrNotFound) {
		return err
	}
	return correction.StorageError(op, err)
}

// GetCorrections implements [correction.Store].
func (g *GuardedStore) GetCorrections(ctx context.Context, minConfidence float64) ([]correction.Entry, error) {
	var out []correction.Entry
	err := g.retrying(ctx, "get corrections", func() error {
		var err error
		out, err = g.inner.GetCorrections(ctx, minConfidence)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveCorrection implements [correction.Store]. It is never retried.
func (g *GuardedStore) SaveCorrection(ctx context.Context, c correction.Correction) (correction.Correction, error) {
	var saved correction.Correction
	err := g.once("save correction", func() error {
		var err error
		saved, err = g.inner.SaveCorrection(ctx, c)
		return err
	})
	if err != nil {
		return correction.Correction{}, err
	}
	return saved, nil
}

// ListCorrections implements [correction.Lister] when the wrapped store does.
func (g *GuardedStore) ListCorrections(ctx context.Context) ([]correction.Correction, error) {
	l, ok := g.inner.(correction.Lister)
	if !ok {
		return nil, unsupported("list corrections")
	}
	var out []correction.Correction
	err := g.retrying(ctx, "list corrections", func() error {
		var err error
		out, err = l.ListCorrections(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCorrection implements [correction.Deleter] when the wrapped store does.
func (g *GuardedStore) DeleteCorrection(ctx context.Context, original, corrected string) error {
	d, ok := g.inner.(correction.Deleter)
	if !ok {
		return unsupported("delete correction")
	}
	return g.retrying(ctx, "delete correction", func() error {
		return d.DeleteCorrection(ctx, original, corrected)
	})
}

// DeleteByOriginal implements [correction.Deleter] when the wrapped store does.
func (g *GuardedStore) DeleteByOriginal(ctx context.Context, original string) (int, error) {
	d, ok := g.inner.(correction.Deleter)
	if !ok {
		return 0, unsupported("delete by original")
	}
	var n int
	err := g.retrying(ctx, "delete by original", func() error {
		var err error
		n, err = d.DeleteByOriginal(ctx, original)
		return err
	})
	return n, err
}

// CountCorrections implements [correction.Counter] when the wrapped store does.
func (g *GuardedStore) CountCorrections(ctx context.Context) (int, error) {
	c, ok := g.inner.(correction.Counter)
	if !ok {
		return 0, unsupported("count corrections")
	}
	var n int
	err := g.retrying(ctx, "count corrections", func() error {
		var err error
		n, err = c.CountCorrections(ctx)
		return err
	})
	return n, err
}

// Ping implements [correction.Pinger]. Stores without a Ping method are
// considered reachable. Ping bypasses the breaker so that readiness reports
// the backend itself, but an open breaker is reported as not ready.
func (g *GuardedStore) Ping(ctx context.Context) error {
	if g.breaker.State() == StateOpen {
		return g.wrap("ping", ErrCircuitOpen)
	}
	p, ok := g.inner.(correction.Pinger)
	if !ok {
		return nil
	}
	return g.wrap("ping", p.Ping(ctx))
}

// Close closes the wrapped store if it implements [io.Closer].
func (g *GuardedStore) Close() error {
	if c, ok := g.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func unsupported(op string) error {
	return fmt.Errorf("resilience: %s: %w", op, errors.ErrUnsupported)
}
