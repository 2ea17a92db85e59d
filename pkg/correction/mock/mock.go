// Package mock provides a recording test double for [correction.Store].
//
// The mock delegates to an internal [correction.MemStore] so upsert
// semantics (occurrence counting, confidence recomputation) stay realistic,
// while exported fields let tests inject failures and observe calls.
//
// Typical usage:
//
//	store := &mock.Store{}
//	store.SaveErrOnCall = 2 // second SaveCorrection fails
//
//	// inject store into the engine under test …
//
//	if got := store.CallCount("SaveCorrection"); got != 2 {
//	    t.Errorf("expected 2 SaveCorrection calls, got %d", got)
//	}
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/quillfix/pkg/correction"
)

var _ correction.Store = (*Store)(nil)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is a configurable test double for [correction.Store].
type Store struct {
	mu    sync.Mutex
	calls []Call
	saves int
	mem   *correction.MemStore

	// GetErr is returned by [Store.GetCorrections] when non-nil.
	GetErr error

	// GetResult, when non-nil, is returned by [Store.GetCorrections] instead
	// of the delegated MemStore contents.
	GetResult []correction.Entry

	// SaveErr is returned by every [Store.SaveCorrection] call when non-nil.
	SaveErr error

	// SaveErrOnCall makes only the n-th SaveCorrection call (1-based) fail
	// with SaveErr, or with a generic storage error when SaveErr is nil.
	SaveErrOnCall int

	// OnSave, when set, runs at the start of every SaveCorrection call
	// before the upsert. Tests use it to observe engine state mid-I/O.
	OnSave func(c correction.Correction)
}

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Mem exposes the backing [correction.MemStore] for assertions.
func (m *Store) Mem() *correction.MemStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memLocked()
}

func (m *Store) memLocked() *correction.MemStore {
	if m.mem == nil {
		m.mem = correction.NewMemStore()
	}
	return m.mem
}

// GetCorrections implements [correction.Store].
func (m *Store) GetCorrections(ctx context.Context, minConfidence float64) ([]correction.Entry, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: "GetCorrections", Args: []any{minConfidence}})
	getErr, getResult, mem := m.GetErr, m.GetResult, m.memLocked()
	m.mu.Unlock()

	if getErr != nil {
		return nil, correction.StorageError("get corrections", getErr)
	}
	if getResult != nil {
		out := make([]correction.Entry, 0, len(getResult))
		for _, e := range getResult {
			if e.Confidence >= minConfidence {
				out = append(out, e)
			}
		}
		return out, nil
	}
	return mem.GetCorrections(ctx, minConfidence)
}

// SaveCorrection implements [correction.Store].
func (m *Store) SaveCorrection(ctx context.Context, c correction.Correction) (correction.Correction, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: "SaveCorrection", Args: []any{c}})
	m.saves++
	n := m.saves
	saveErr, failOn, hook, mem := m.SaveErr, m.SaveErrOnCall, m.OnSave, m.memLocked()
	m.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	if failOn > 0 {
		if n == failOn {
			if saveErr == nil {
				saveErr = errInjected
			}
			return correction.Correction{}, correction.StorageError("save correction", saveErr)
		}
	} else if saveErr != nil {
		return correction.Correction{}, correction.StorageError("save correction", saveErr)
	}
	return mem.SaveCorrection(ctx, c)
}

var errInjected = errors.New("mock: injected save failure")
