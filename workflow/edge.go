// Package workflow provides the graph execution engine for the
// protocol foundry: a directed graph of named nodes with conditional
// routing, per-step checkpointing, and a cooperative suspend/resume
// protocol for human-in-the-loop steps.
package workflow

// Edge represents a connection between two nodes in the workflow graph.
//
// Edges define the control flow between nodes. They can be:
//   - Unconditional: always traverse (When = nil).
//   - Conditional: only traverse if the predicate returns true.
//
// Outgoing edges are evaluated in declaration order and the first match
// wins, so a router is expressed as an ordered list of conditional
// edges with an unconditional fallback last.
//
// Explicit routing via NodeResult.Route overrides edge-based routing.
type Edge[S any] struct {
	// From is the source node ID.
	From string

	// To is the destination node ID.
	To string

	// When is an optional predicate that determines if this edge should
	// be traversed. If nil, the edge is unconditional.
	When Predicate[S]
}

// Predicate is a function that evaluates state to determine if an edge
// should be traversed.
//
// Predicates enable conditional routing based on workflow state. They
// must be pure functions (deterministic, no side effects), because the
// engine may evaluate several predicates for a single routing decision.
type Predicate[S any] func(state S) bool
