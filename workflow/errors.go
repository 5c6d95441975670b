package workflow

import "errors"

// ErrSessionNotFound indicates that a Resume or Snapshot call named a
// session id with no persisted checkpoint.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotSuspended indicates that Resume was called on a session that is
// not currently suspended at a node. The session state is not mutated.
var ErrNotSuspended = errors.New("session is not suspended")

// EngineError represents a structured error from Engine operations.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
