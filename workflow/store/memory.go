package store

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store[S].
//
// Designed for tests, development, and short-lived sessions where
// durability isn't required. Data is lost when the process terminates.
//
// MemStore is thread-safe and supports concurrent access across
// sessions.
type MemStore[S any] struct {
	mu      sync.RWMutex
	latest  map[string]Checkpoint[S]   // sessionID -> current checkpoint
	history map[string][]Checkpoint[S] // sessionID -> ordered step history
}

// NewMemStore creates a new in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		latest:  make(map[string]Checkpoint[S]),
		history: make(map[string][]Checkpoint[S]),
	}
}

// Save replaces the session's checkpoint and appends to its history.
func (m *MemStore[S]) Save(_ context.Context, cp Checkpoint[S]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	m.latest[cp.SessionID] = cp
	m.history[cp.SessionID] = append(m.history[cp.SessionID], cp)
	return nil
}

// Load retrieves the latest checkpoint for a session.
func (m *MemStore[S]) Load(_ context.Context, sessionID string) (Checkpoint[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.latest[sessionID]
	if !ok {
		var zero Checkpoint[S]
		return zero, ErrNotFound
	}
	return cp, nil
}

// History returns a copy of the ordered checkpoint history for a
// session. Useful for inspecting step-by-step progression in tests.
func (m *MemStore[S]) History(sessionID string) []Checkpoint[S] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.history[sessionID]
	out := make([]Checkpoint[S], len(records))
	copy(out, records)
	return out
}
