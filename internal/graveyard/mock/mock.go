// Package mock provides an in-memory test double for [graveyard.Store].
//
// The mock keeps appended graves in memory, records every call and returns
// the configured *Err fields when they are non-nil. It is safe for
// concurrent use.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/necromancer/internal/graveyard"
)

var _ graveyard.Store = (*Store)(nil)

// Store is a configurable test double for [graveyard.Store].
type Store struct {
	mu sync.Mutex

	calls  []string
	graves []graveyard.Grave
	closed bool

	// AppendErr is returned by [Store.Append] when non-nil; the grave is
	// not stored.
	AppendErr error

	// LoadErr is returned by [Store.LoadAll] when non-nil.
	LoadErr error

	// ClearErr is returned by [Store.Clear] when non-nil.
	ClearErr error
}

// Append implements [graveyard.Store].
func (m *Store) Append(_ context.Context, g graveyard.Grave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "Append")
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.graves = append(m.graves, g)
	return nil
}

// LoadAll implements [graveyard.Store].
func (m *Store) LoadAll(context.Context) ([]graveyard.Grave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "LoadAll")
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	out := slices.Clone(m.graves)
	slices.Reverse(out)
	return out, nil
}

// Clear implements [graveyard.Store].
func (m *Store) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "Clear")
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.graves = nil
	return nil
}

// Close implements [graveyard.Store].
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "Close")
	m.closed = true
	return nil
}

// Graves returns the stored graves in insertion order.
func (m *Store) Graves() []graveyard.Grave {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.graves)
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (m *Store) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
