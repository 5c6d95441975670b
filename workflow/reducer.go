package workflow

// Reducer merges a node's partial state update into the previous state.
//
// The reducer is the single place where per-field merge semantics live:
// scalar fields are typically overwritten when the delta carries a
// non-zero value, while audit-trail fields (logs, histories) are
// appended and never truncated. Keeping the policy in one named
// function avoids hidden per-field merge behavior scattered across
// nodes.
//
// Reducers must be deterministic and must not mutate prev's backing
// arrays in ways that alias the delta; the engine calls the reducer
// exactly once per completed node execution.
//
// Example:
//
//	func reduce(prev, delta ReviewState) ReviewState {
//	    if delta.Draft != "" {
//	        prev.Draft = delta.Draft
//	    }
//	    prev.Log = append(prev.Log, delta.Log...)
//	    return prev
//	}
type Reducer[S any] func(prev, delta S) S
