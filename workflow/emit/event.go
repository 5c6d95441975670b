package emit

// Event represents an observability event emitted during workflow
// execution.
//
// Events provide insight into session behavior: session start and
// completion, per-node step completion, suspensions, and resumes.
type Event struct {
	// SessionID identifies the session that emitted this event.
	SessionID string

	// Step is the sequential step number in the session (1-indexed).
	// Zero for session-level events.
	Step int

	// NodeID identifies which node emitted this event.
	// Empty string for session-level events.
	NodeID string

	// Msg is a short machine-friendly description of the event,
	// e.g. "session_start", "step", "suspended", "session_complete".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys: "duration_ms", "error", "next", "status".
	Meta map[string]interface{}
}
