// Package store provides durable checkpoint persistence for workflow
// sessions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested session ID has no persisted
// checkpoint.
var ErrNotFound = errors.New("not found")

// Checkpoint is the durable snapshot of a session taken after each
// executed step.
//
// One checkpoint — the most recent — is the session's authoritative
// record: Save atomically replaces it, and Load always observes the
// latest committed write for that session id. Implementations also keep
// an append-only step history for auditing, keyed by (session, step).
type Checkpoint[S any] struct {
	// SessionID is the persistence key for this session.
	SessionID string `json:"session_id"`

	// Step is the number of completed node executions. Checkpoints for
	// a session are strictly ordered by step.
	Step int `json:"step"`

	// Node is where execution continues: the next node to run, or the
	// suspended node when Suspended is true. Empty when the session has
	// reached a terminal node.
	Node string `json:"node"`

	// Suspended marks a session paused at Node awaiting an external
	// decision.
	Suspended bool `json:"suspended"`

	// Payload is the suspension payload handed back to the caller,
	// serialized so a suspended session can be rendered and resumed
	// after a process restart. Nil unless Suspended.
	Payload json.RawMessage `json:"payload,omitempty"`

	// State is the full session state after the last committed step.
	State S `json:"state"`

	// UpdatedAt records when this checkpoint was committed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store provides persistence for session checkpoints.
//
// Requirements on implementations:
//   - Save is all-or-nothing: either the full checkpoint (and its
//     history row) commits, or nothing does.
//   - Load returns the most recently committed checkpoint for the id,
//     or ErrNotFound.
//   - Concurrent access across different session ids needs no caller
//     coordination; the engine serializes access per session id.
//
// Implementations can use in-memory maps (testing), SQLite (local
// single-store deployments), or MySQL (shared deployments).
type Store[S any] interface {
	// Save atomically replaces the session's checkpoint and appends a
	// history row for the step.
	Save(ctx context.Context, cp Checkpoint[S]) error

	// Load retrieves the latest checkpoint for a session.
	// Returns ErrNotFound if the session id has never been saved.
	Load(ctx context.Context, sessionID string) (Checkpoint[S], error)
}
