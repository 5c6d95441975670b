package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cerina/foundry-go/workflow/emit"
	"github.com/cerina/foundry-go/workflow/store"
)

// Engine drives a workflow graph for one session at a time from its
// current node until it reaches a terminal node or a suspension point.
//
// The Engine:
//   - Executes nodes sequentially (cooperative, one step at a time)
//   - Merges each node's partial update via the reducer
//   - Persists a checkpoint after every committed step, so a session
//     can be resumed arbitrarily later, including across restarts
//   - Implements the suspend/resume protocol: a node returning Suspend
//     unwinds the call with a payload; Resume re-enters that node with
//     the caller's decision substituted for the suspension
//   - Serializes Start/Resume calls per session id; different sessions
//     run independently and may execute concurrently
//
// Type parameter S is the state type shared across the workflow.
//
// Example:
//
//	graph, _ := workflow.NewGraph(startNode, nodes, edges)
//	engine := workflow.New(graph, reducer, st, emitter, workflow.Options{MaxSteps: 50})
//
//	result, err := engine.Start(ctx, "session-1", initialState)
//	if result.Paused {
//	    // render result.Payload, later:
//	    result, err = engine.Resume(ctx, "session-1", decision)
//	}
type Engine[S any] struct {
	graph   *Graph[S]
	reducer Reducer[S]
	store   store.Store[S]
	emitter emit.Emitter
	metrics *Metrics
	opts    Options

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// Options configures Engine execution behavior.
//
// Zero values are valid; the Engine will use sensible defaults.
type Options struct {
	// MaxSteps limits the number of node executions in a single
	// Start/Resume call, as a backstop against routing bugs. If 0,
	// no limit is enforced. Domain-level loop limits (such as an
	// iteration circuit breaker) belong in routing predicates, not
	// here.
	MaxSteps int
}

// RunResult is the outcome of a Start or Resume call, or of a Snapshot
// read.
//
// Paused indicates the session is suspended awaiting an external
// decision; Payload then carries the serialized suspension payload and
// Node the suspended node. Otherwise the session ran to a terminal node
// and State holds the final state.
type RunResult[S any] struct {
	// SessionID identifies the session.
	SessionID string

	// Paused reports whether the session is suspended.
	Paused bool

	// Node is the suspended node when Paused, empty otherwise.
	Node string

	// Step is the number of committed node executions so far.
	Step int

	// Payload is the suspension payload, nil unless Paused.
	Payload json.RawMessage

	// State is the session state at the checkpoint this result
	// describes.
	State S
}

// New creates an Engine for the given topology.
//
// Parameters:
//   - graph: immutable topology from NewGraph (required)
//   - reducer: merges partial state updates (required)
//   - st: checkpoint persistence backend (required)
//   - emitter: observability event receiver (optional, may be nil)
//   - opts: execution configuration
//
// The constructor does not validate required parameters to allow
// flexible initialization; validation occurs on the first call.
func New[S any](graph *Graph[S], reducer Reducer[S], st store.Store[S], emitter emit.Emitter, opts Options) *Engine[S] {
	return &Engine[S]{
		graph:    graph,
		reducer:  reducer,
		store:    st,
		emitter:  emitter,
		opts:     opts,
		sessions: make(map[string]*sync.Mutex),
	}
}

// WithMetrics attaches a Prometheus metrics collector. Returns the
// engine for chaining. Safe to skip; a nil collector records nothing.
func (e *Engine[S]) WithMetrics(m *Metrics) *Engine[S] {
	e.metrics = m
	return e
}

// Start creates (or overwrites) a session and runs it from the graph's
// entry node until it suspends or reaches a terminal node.
//
// The initial checkpoint (step 0) is committed before the first node
// executes, so even a session that fails mid-flight has a durable
// record.
func (e *Engine[S]) Start(ctx context.Context, sessionID string, initial S) (RunResult[S], error) {
	var zero RunResult[S]
	if err := e.validate(); err != nil {
		return zero, err
	}
	if sessionID == "" {
		return zero, &EngineError{Code: "INVALID_SESSION", Message: "session ID cannot be empty"}
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	start := e.graph.Start()
	cp := store.Checkpoint[S]{
		SessionID: sessionID,
		Step:      0,
		Node:      start,
		State:     initial,
	}
	if err := e.store.Save(ctx, cp); err != nil {
		return zero, &EngineError{Code: "STORE_ERROR", Message: "failed to save initial checkpoint: " + err.Error()}
	}

	e.metrics.SessionStarted()
	e.emit(emit.Event{SessionID: sessionID, NodeID: start, Msg: "session_start"})

	return e.run(ctx, sessionID, initial, start, 0, nil)
}

// Resume re-enters a session suspended at a node, substituting the
// caller's decision for the node's suspension, and continues stepping
// until the session suspends again or reaches a terminal node.
//
// Returns ErrSessionNotFound if no checkpoint exists for the session
// id, and ErrNotSuspended if the session is not currently suspended.
// In both cases the session is not mutated.
func (e *Engine[S]) Resume(ctx context.Context, sessionID string, decision any) (RunResult[S], error) {
	var zero RunResult[S]
	if err := e.validate(); err != nil {
		return zero, err
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	cp, err := e.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return zero, &EngineError{Code: "STORE_ERROR", Message: "failed to load checkpoint: " + err.Error()}
	}
	if !cp.Suspended || cp.Node == "" {
		return zero, fmt.Errorf("%w: %s", ErrNotSuspended, sessionID)
	}

	e.metrics.SessionResumed()
	e.emit(emit.Event{SessionID: sessionID, Step: cp.Step, NodeID: cp.Node, Msg: "session_resume"})

	return e.run(ctx, sessionID, cp.State, cp.Node, cp.Step, decision)
}

// Snapshot returns the session's current checkpoint without advancing
// execution. Returns ErrSessionNotFound if no checkpoint exists.
func (e *Engine[S]) Snapshot(ctx context.Context, sessionID string) (RunResult[S], error) {
	var zero RunResult[S]
	if e.store == nil {
		return zero, &EngineError{Code: "MISSING_STORE", Message: "store is required"}
	}

	cp, err := e.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return zero, &EngineError{Code: "STORE_ERROR", Message: "failed to load checkpoint: " + err.Error()}
	}

	return RunResult[S]{
		SessionID: sessionID,
		Paused:    cp.Suspended,
		Node:      cp.Node,
		Step:      cp.Step,
		Payload:   cp.Payload,
		State:     cp.State,
	}, nil
}

// run is the execution loop shared by Start and Resume. The resume
// value is delivered to the first node invocation only.
func (e *Engine[S]) run(ctx context.Context, sessionID string, state S, current string, step int, resume any) (RunResult[S], error) {
	var zero RunResult[S]
	ran := 0

	for {
		ran++
		if e.opts.MaxSteps > 0 && ran > e.opts.MaxSteps {
			return zero, &EngineError{Code: "MAX_STEPS_EXCEEDED", Message: "workflow exceeded MaxSteps limit"}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		impl, ok := e.graph.Node(current)
		if !ok {
			return zero, &EngineError{Code: "NODE_NOT_FOUND", Message: "node not found during execution: " + current}
		}

		began := time.Now()
		result := impl.Run(ctx, Session{ID: sessionID, Resume: resume}, state)
		resume = nil

		if result.Err != nil {
			e.metrics.ObserveNode(current, "error", time.Since(began))
			return zero, result.Err
		}

		if result.Interrupt != nil {
			payload, err := json.Marshal(result.Interrupt.Payload)
			if err != nil {
				return zero, &EngineError{Code: "SUSPEND_PAYLOAD", Message: "failed to marshal suspension payload: " + err.Error()}
			}

			cp := store.Checkpoint[S]{
				SessionID: sessionID,
				Step:      step,
				Node:      current,
				Suspended: true,
				Payload:   payload,
				State:     state,
			}
			if err := e.store.Save(ctx, cp); err != nil {
				return zero, &EngineError{Code: "STORE_ERROR", Message: "failed to save suspension checkpoint: " + err.Error()}
			}

			e.metrics.Suspended()
			e.metrics.ObserveNode(current, "suspend", time.Since(began))
			e.emit(emit.Event{SessionID: sessionID, Step: step, NodeID: current, Msg: "suspended"})

			return RunResult[S]{
				SessionID: sessionID,
				Paused:    true,
				Node:      current,
				Step:      step,
				Payload:   payload,
				State:     state,
			}, nil
		}

		state = e.reducer(state, result.Delta)
		step++

		// Routing: explicit route wins, otherwise consult the edges.
		next := ""
		if !result.Route.Terminal {
			if result.Route.To != "" {
				next = result.Route.To
			} else {
				next = e.graph.Route(current, state)
				if next == "" {
					return zero, &EngineError{Code: "NO_ROUTE", Message: "no valid route from node: " + current}
				}
			}
		}

		cp := store.Checkpoint[S]{
			SessionID: sessionID,
			Step:      step,
			Node:      next,
			State:     state,
		}
		if err := e.store.Save(ctx, cp); err != nil {
			return zero, &EngineError{Code: "STORE_ERROR", Message: "failed to save step: " + err.Error()}
		}

		e.metrics.StepCommitted(current)
		e.metrics.ObserveNode(current, "ok", time.Since(began))
		e.emit(emit.Event{
			SessionID: sessionID,
			Step:      step,
			NodeID:    current,
			Msg:       "step",
			Meta:      map[string]interface{}{"next": next, "duration_ms": time.Since(began).Milliseconds()},
		})

		if next == "" {
			e.emit(emit.Event{SessionID: sessionID, Step: step, Msg: "session_complete"})
			return RunResult[S]{
				SessionID: sessionID,
				Paused:    false,
				Step:      step,
				State:     state,
			}, nil
		}

		current = next
	}
}

func (e *Engine[S]) validate() error {
	if e.graph == nil {
		return &EngineError{Code: "MISSING_GRAPH", Message: "graph is required"}
	}
	if e.reducer == nil {
		return &EngineError{Code: "MISSING_REDUCER", Message: "reducer is required"}
	}
	if e.store == nil {
		return &EngineError{Code: "MISSING_STORE", Message: "store is required"}
	}
	return nil
}

func (e *Engine[S]) emit(event emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

// sessionLock returns the mutex serializing Start/Resume calls for a
// session id, creating it on first use. Locks are never removed; the
// set of live session ids is expected to be small relative to memory.
func (e *Engine[S]) sessionLock(sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		e.sessions[sessionID] = lock
	}
	return lock
}
