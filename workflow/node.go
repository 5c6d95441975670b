package workflow

import "context"

// Node represents a processing unit in the workflow graph.
// It receives the current session state, performs computation, and
// returns a NodeResult describing how execution should proceed.
//
// Each node can:
//   - Return a partial state update via Delta (merged by the Reducer)
//   - Control routing via Route (explicit Goto or Stop)
//   - Suspend the session and hand a payload back to the caller
//   - Report an error, which aborts the current call without
//     committing a checkpoint
//
// Type parameter S is the state type shared across the workflow.
type Node[S any] interface {
	// Run executes the node's logic with the given context, session
	// metadata, and state.
	Run(ctx context.Context, sess Session, state S) NodeResult[S]
}

// Session carries the engine-owned metadata a node is allowed to see.
//
// ID is the session identifier (the persistence key). Resume holds the
// externally supplied decision when the engine re-enters a node that
// previously suspended; it is nil on every other invocation. Nodes that
// never suspend can ignore both fields.
type Session struct {
	// ID is the session identifier for this run.
	ID string

	// Resume is the caller-supplied value substituted for the node's
	// suspension. Nil unless this invocation is a resume of a node
	// that returned Suspend on its previous invocation.
	Resume any
}

// NodeResult represents the output of a node execution.
//
// Exactly one of the following outcomes applies:
//   - Err != nil: the call fails; no state is committed.
//   - Interrupt != nil: the session suspends; the engine persists the
//     pre-node state with the payload and returns to the caller.
//   - Otherwise: Delta is merged into state and Route (or the graph's
//     edges, when Route is zero) selects the next node.
type NodeResult[S any] struct {
	// Delta is the partial state update produced by this node.
	// It is merged with the current state using the configured reducer.
	Delta S

	// Route specifies the next step in workflow execution.
	// Leave zero to fall back to the graph's conditional edges.
	Route Next

	// Interrupt, when non-nil, suspends the session. The engine
	// checkpoints the session as suspended at this node and returns
	// the payload to the caller. Delta and Route are ignored.
	Interrupt *Interrupt

	// Err contains any error that occurred during node execution.
	// Non-nil errors abort the current Start/Resume call.
	Err error
}

// Interrupt is a request to suspend the session at the current node.
//
// The payload is serialized into the checkpoint and surfaced to the
// caller through RunResult, so a suspended session can be rendered and
// resumed after an arbitrary delay, including across process restarts.
type Interrupt struct {
	// Payload is returned to the caller and persisted with the
	// checkpoint. Must be JSON-serializable.
	Payload any
}

// Next specifies the next step in workflow execution after a node
// completes.
type Next struct {
	// To specifies the next node to execute. Mutually exclusive with
	// Terminal.
	To string

	// Terminal indicates workflow execution should stop.
	Terminal bool
}

// Stop returns a Next that terminates workflow execution.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that routes to the specified node.
func Goto(nodeID string) Next {
	return Next{To: nodeID}
}

// Continue returns a NodeResult that merges delta into the state and
// defers routing to the graph's edges.
func Continue[S any](delta S) NodeResult[S] {
	return NodeResult[S]{Delta: delta}
}

// Suspend returns a NodeResult that pauses the session and hands the
// payload back to the caller. The node is re-invoked with the external
// decision in Session.Resume when the caller resumes.
func Suspend[S any](payload any) NodeResult[S] {
	return NodeResult[S]{Interrupt: &Interrupt{Payload: payload}}
}

// Terminate returns a NodeResult that merges delta and ends the run.
func Terminate[S any](delta S) NodeResult[S] {
	return NodeResult[S]{Delta: delta, Route: Stop()}
}

// Fail returns a NodeResult carrying a node-level error.
func Fail[S any](err error) NodeResult[S] {
	return NodeResult[S]{Err: err}
}

// NodeFunc is a function adapter that implements the Node interface.
// It allows using plain functions as nodes without creating custom
// types.
type NodeFunc[S any] func(ctx context.Context, sess Session, state S) NodeResult[S]

// Run implements the Node interface for NodeFunc.
func (f NodeFunc[S]) Run(ctx context.Context, sess Session, state S) NodeResult[S] {
	return f(ctx, sess, state)
}
