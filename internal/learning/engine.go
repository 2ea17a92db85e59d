// Package learning learns recurring transcription typos from the edits a user
// makes to transcribed text and applies them to later transcriptions.
//
// An [Engine] aligns the original and edited text word by word, keeps the
// aligned pairs that look like single-character typos, persists each
// observation through a [correction.Store] and holds the corrections that
// have been seen often enough in an in-memory [Cache]. Applying corrections
// is a pure in-memory pass over that cache.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/quillfix/internal/observe"
	"github.com/MrWong99/quillfix/pkg/correction"
)

const (
	// DefaultMinConfidence is the confidence a correction needs before it is
	// applied automatically. With the default confidence model this is
	// reached on the third observation.
	DefaultMinConfidence = 0.55

	// DefaultMaxLengthDiff is the largest byte-length difference between an
	// original and a corrected token that is still treated as a typo.
	DefaultMaxLengthDiff = 1
)

// ErrNoStore is returned by operations that need persistence when the engine
// was built without a [correction.Store].
var ErrNoStore = errors.New("learning: no correction store configured")

// LoadPolicy decides what [FromStore] does when the initial bulk load fails.
type LoadPolicy string

const (
	// LoadFallbackEmpty logs the failure and returns an engine with an empty
	// cache. Learning keeps working; previously learned corrections come back
	// on the next successful [Engine.ReloadFromStore].
	LoadFallbackEmpty LoadPolicy = "fallback-empty"

	// LoadPropagate returns the load error to the caller.
	LoadPropagate LoadPolicy = "propagate"
)

// IsValid reports whether p is a known load policy.
func (p LoadPolicy) IsValid() bool {
	switch p {
	case LoadFallbackEmpty, LoadPropagate:
		return true
	}
	return false
}

// LearnedCorrection is a pair accepted and persisted by [Engine.LearnFromEdit].
type LearnedCorrection struct {
	// Original is the token as it appeared in the original text.
	Original string `json:"original"`
	// Corrected is the token as it appeared in the edited text.
	Corrected string `json:"corrected"`
	// Similarity is the score that qualified the pair.
	Similarity float64 `json:"similarity"`
}

// AppliedCorrection records one token replaced by [Engine.ApplyCorrections].
type AppliedCorrection struct {
	// Original is the token as it appeared in the input.
	Original string `json:"original"`
	// Corrected is the replacement after case matching.
	Corrected string `json:"corrected"`
	// Confidence is the cached confidence of the correction.
	Confidence float64 `json:"confidence"`
	// Position is the zero-based index of the token in the input.
	Position int `json:"position"`
}

// Option configures an [Engine].
type Option func(*Engine)

// WithStore sets the persistence backend used for learning and reloading.
func WithStore(s correction.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithAlignmentThreshold sets the minimum similarity for two tokens to be
// aligned directly. Default: [DefaultAlignmentThreshold].
func WithAlignmentThreshold(t float64) Option {
	return func(e *Engine) { e.alignmentThreshold = t }
}

// WithCorrectionThreshold sets the minimum similarity for an aligned pair to
// be learned. Default: [DefaultCorrectionThreshold].
func WithCorrectionThreshold(t float64) Option {
	return func(e *Engine) { e.correctionThreshold = t }
}

// WithMinConfidence sets the initial auto-apply confidence, clamped to
// [0, 1]. Default: [DefaultMinConfidence].
func WithMinConfidence(c float64) Option {
	return func(e *Engine) { e.SetMinConfidence(c) }
}

// WithMaxLengthDiff sets the largest accepted byte-length difference between
// original and corrected tokens. Default: [DefaultMaxLengthDiff].
func WithMaxLengthDiff(n int) Option {
	return func(e *Engine) { e.maxLengthDiff = n }
}

// WithLoadPolicy sets how [FromStore] reacts to a failed initial load.
// Default: [LoadFallbackEmpty].
func WithLoadPolicy(p LoadPolicy) Option {
	return func(e *Engine) { e.loadPolicy = p }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine learns corrections from user edits and applies them to new text.
// All methods are safe for concurrent use.
type Engine struct {
	cache Cache
	store correction.Store

	// minConfidence holds math.Float64bits of the auto-apply threshold.
	minConfidence atomic.Uint64

	alignmentThreshold  float64
	correctionThreshold float64
	maxLengthDiff       int
	loadPolicy          LoadPolicy

	logger  *slog.Logger
	metrics *observe.Metrics
}

// New returns an engine with an empty cache.
func New(opts ...Option) *Engine {
	e := &Engine{
		alignmentThreshold:  DefaultAlignmentThreshold,
		correctionThreshold: DefaultCorrectionThreshold,
		maxLengthDiff:       DefaultMaxLengthDiff,
		loadPolicy:          LoadFallbackEmpty,
		logger:              slog.Default(),
	}
	e.minConfidence.Store(math.Float64bits(DefaultMinConfidence))
	for _, o := range opts {
		o(e)
	}
	return e
}

// FromStore returns an engine backed by store with its cache pre-loaded with
// every stored correction at or above the minimum confidence.
//
// If the load fails the result depends on the [LoadPolicy]: with
// [LoadFallbackEmpty] the error is logged and an empty engine is returned;
// with [LoadPropagate] the error is returned.
func FromStore(ctx context.Context, store correction.Store, opts ...Option) (*Engine, error) {
	e := New(append(opts, WithStore(store))...)
	if err := e.ReloadFromStore(ctx); err != nil {
		if e.loadPolicy == LoadPropagate {
			return nil, err
		}
		e.logger.Warn("learning: initial load failed, starting with empty cache", "err", err)
	}
	return e, nil
}

// MinConfidence returns the current auto-apply threshold.
func (e *Engine) MinConfidence() float64 {
	return math.Float64frombits(e.minConfidence.Load())
}

// SetMinConfidence changes the auto-apply threshold at runtime. Values are
// clamped to [0, 1]; NaN is ignored. The new value governs every lookup that
// starts after the call returns.
func (e *Engine) SetMinConfidence(c float64) {
	if math.IsNaN(c) {
		return
	}
	c = min(max(c, 0), 1)
	e.minConfidence.Store(math.Float64bits(c))
}

// LearnFromEdit compares an original transcription with the user's edited
// version and records every aligned pair that looks like a typo:
// case-insensitively different, similarity at least the correction threshold
// and a byte-length difference within the configured maximum.
//
// Each accepted pair is persisted before the cache is touched. A pair whose
// stored confidence reaches the minimum confidence is written to the cache,
// replacing any earlier correction for the same original word.
//
// A storage failure aborts the remaining pairs and returns an error wrapping
// [correction.ErrStorage]; pairs persisted before the failure stay persisted.
func (e *Engine) LearnFromEdit(ctx context.Context, original, edited string) ([]LearnedCorrection, error) {
	start := time.Now()
	if e.metrics != nil {
		defer func() { e.metrics.LearnDuration.Record(ctx, time.Since(start).Seconds()) }()
	}

	pairs := Align(strings.Fields(original), strings.Fields(edited), e.alignmentThreshold)

	learned := []LearnedCorrection{}
	for _, p := range pairs {
		if strings.EqualFold(p.Original, p.Edited) {
			continue
		}
		sim := Similarity(p.Original, p.Edited)
		if sim < e.correctionThreshold || lengthDiff(p.Original, p.Edited) > e.maxLengthDiff {
			continue
		}
		if e.store == nil {
			return nil, ErrNoStore
		}

		saved, err := e.store.SaveCorrection(ctx, correction.New(p.Original, p.Edited, correction.SourceUserEdit))
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordStorageError(ctx, "save")
			}
			e.logger.Error("learning: failed to persist correction",
				"original", p.Original, "corrected", p.Edited, "err", err)
			return nil, correction.StorageError("save correction", err)
		}

		if saved.Confidence >= e.MinConfidence() {
			e.cache.Set(saved.Original, Cached{Corrected: saved.Corrected, Confidence: saved.Confidence})
		}
		e.logger.Debug("learning: learned correction",
			"original", p.Original, "corrected", p.Edited,
			"similarity", sim, "occurrences", saved.Occurrences, "confidence", saved.Confidence)

		learned = append(learned, LearnedCorrection{Original: p.Original, Corrected: p.Edited, Similarity: sim})
	}

	if e.metrics != nil {
		e.metrics.RecordLearned(ctx, string(correction.SourceUserEdit), len(learned))
	}
	return learned, nil
}

// ApplyCorrections replaces every whitespace-separated token of text that has
// a cached correction at or above the minimum confidence. Replacements keep
// the token's capitalisation pattern (see [MatchCase]).
//
// When nothing could apply (empty cache or no tokens) text is returned
// unchanged. Otherwise the result is the tokens re-joined with single spaces,
// so runs of whitespace, tabs and newlines collapse even if no token changed.
//
// The cache read lock is held for the whole pass so every token sees the
// same cache state.
func (e *Engine) ApplyCorrections(text string) (string, []AppliedCorrection) {
	start := time.Now()
	minConf := e.MinConfidence()

	out := text
	applied := []AppliedCorrection{}
	e.cache.view(func(entries map[string]Cached) {
		if len(entries) == 0 {
			return
		}
		tokens := strings.Fields(text)
		if len(tokens) == 0 {
			return
		}
		for i, tok := range tokens {
			c, ok := entries[strings.ToLower(tok)]
			if !ok || c.Confidence < minConf {
				continue
			}
			fixed := MatchCase(c.Corrected, tok)
			applied = append(applied, AppliedCorrection{
				Original:   tok,
				Corrected:  fixed,
				Confidence: c.Confidence,
				Position:   i,
			})
			tokens[i] = fixed
		}
		out = strings.Join(tokens, " ")
	})

	for _, a := range applied {
		e.logger.Debug("learning: applied correction",
			"original", a.Original, "corrected", a.Corrected, "confidence", a.Confidence)
	}
	if e.metrics != nil {
		ctx := context.Background()
		e.metrics.ApplyDuration.Record(ctx, time.Since(start).Seconds())
		e.metrics.RecordApplied(ctx, len(applied))
	}
	return out, applied
}

// HasCorrection reports whether any correction is cached for word, ignoring
// case. Unlike [Engine.GetCorrection] it does not consult the minimum
// confidence.
func (e *Engine) HasCorrection(word string) bool {
	_, ok := e.cache.Get(word)
	return ok
}

// GetCorrection returns the cached correction for word if its confidence is
// at least the current minimum confidence. The corrected form is returned as
// stored, without case matching.
func (e *Engine) GetCorrection(word string) (string, bool) {
	c, ok := e.cache.Get(word)
	if !ok || c.Confidence < e.MinConfidence() {
		return "", false
	}
	return c.Corrected, true
}

// AllCorrections returns every cached correction sorted by original word.
func (e *Engine) AllCorrections() []correction.Entry {
	return e.cache.Snapshot()
}

// CacheSize returns the number of cached corrections.
func (e *Engine) CacheSize() int {
	return e.cache.Len()
}

// ClearCache drops every cached correction. Persisted corrections are not
// affected.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// RemoveFromCache drops the cached correction for word and reports whether
// one existed. Persisted corrections are not affected, so the entry comes
// back on the next reload.
func (e *Engine) RemoveFromCache(word string) bool {
	return e.cache.Remove(word)
}

// ReloadFromStore replaces the cache with every stored correction at or above
// the current minimum confidence. Where the store returns several corrections
// for one original the highest-confidence one is kept. The new contents are
// built before the cache lock is taken and swapped in atomically; on error
// the cache is left untouched.
func (e *Engine) ReloadFromStore(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}

	minConf := e.MinConfidence()
	entries, err := e.store.GetCorrections(ctx, minConf)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordStorageError(ctx, "load")
		}
		return fmt.Errorf("learning: reload: %w", correction.StorageError("load corrections", err))
	}

	m := newCacheFrom(entries)
	e.cache.replace(m)
	e.logger.Info("learning: loaded corrections", "count", len(m), "min_confidence", minConf)
	return nil
}
