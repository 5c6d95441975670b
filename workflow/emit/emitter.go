// Package emit provides pluggable observability for workflow execution.
package emit

// Emitter receives and processes observability events from workflow
// execution.
//
// Emitters enable pluggable observability backends: structured logs,
// distributed tracing, or nothing at all in quiet deployments.
//
// Implementations should be:
//   - Non-blocking: avoid slowing down workflow execution
//   - Thread-safe: may be called concurrently from different sessions
//   - Resilient: handle failures gracefully, never panic the workflow
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Emit should not block workflow execution and should not panic;
	// backend errors are logged internally.
	Emit(event Event)
}
