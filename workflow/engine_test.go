package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/cerina/foundry-go/workflow/emit"
	"github.com/cerina/foundry-go/workflow/store"
)

// testState is the minimal state used across workflow tests.
type testState struct {
	Path    []string `json:"path"`
	Counter int      `json:"counter"`
	Flag    bool     `json:"flag"`
}

func testReducer(prev, delta testState) testState {
	prev.Path = append(prev.Path, delta.Path...)
	prev.Counter += delta.Counter
	if delta.Flag {
		prev.Flag = true
	}
	return prev
}

// visit returns a node that records its id in the path and defers
// routing to the graph's edges.
func visit(id string) Node[testState] {
	return NodeFunc[testState](func(_ context.Context, _ Session, _ testState) NodeResult[testState] {
		return Continue(testState{Path: []string{id}})
	})
}

// finish returns a terminal node that records its id.
func finish(id string) Node[testState] {
	return NodeFunc[testState](func(_ context.Context, _ Session, _ testState) NodeResult[testState] {
		return Terminate(testState{Path: []string{id}})
	})
}

func newTestEngine(t *testing.T, graph *Graph[testState], st store.Store[testState], opts Options) *Engine[testState] {
	t.Helper()
	if st == nil {
		st = store.NewMemStore[testState]()
	}
	return New(graph, testReducer, st, nil, opts)
}

func TestEngine_Start(t *testing.T) {
	t.Run("runs a linear graph to the terminal node", func(t *testing.T) {
		graph, err := NewGraph("a",
			map[string]Node[testState]{"a": visit("a"), "b": visit("b"), "c": finish("c")},
			[]Edge[testState]{{From: "a", To: "b"}, {From: "b", To: "c"}},
		)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}

		st := store.NewMemStore[testState]()
		engine := newTestEngine(t, graph, st, Options{})

		result, err := engine.Start(context.Background(), "s1", testState{})
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if result.Paused {
			t.Error("expected run to complete, got paused")
		}
		if got, want := len(result.State.Path), 3; got != want {
			t.Fatalf("expected %d visits, got %d (%v)", want, got, result.State.Path)
		}
		for i, want := range []string{"a", "b", "c"} {
			if result.State.Path[i] != want {
				t.Errorf("path[%d] = %q, want %q", i, result.State.Path[i], want)
			}
		}
		if result.Step != 3 {
			t.Errorf("expected 3 committed steps, got %d", result.Step)
		}
	})

	t.Run("commits a checkpoint for every step", func(t *testing.T) {
		graph, err := NewGraph("a",
			map[string]Node[testState]{"a": visit("a"), "b": finish("b")},
			[]Edge[testState]{{From: "a", To: "b"}},
		)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}

		st := store.NewMemStore[testState]()
		engine := newTestEngine(t, graph, st, Options{})

		if _, err := engine.Start(context.Background(), "s1", testState{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		history := st.History("s1")
		// step 0 (initial) + one per node execution
		if len(history) != 3 {
			t.Fatalf("expected 3 checkpoints, got %d", len(history))
		}
		if history[0].Step != 0 || history[0].Node != "a" {
			t.Errorf("initial checkpoint = step %d node %q, want step 0 node a", history[0].Step, history[0].Node)
		}
		if history[1].Node != "b" {
			t.Errorf("checkpoint after a should point at b, got %q", history[1].Node)
		}
		last := history[len(history)-1]
		if last.Node != "" {
			t.Errorf("terminal checkpoint should have empty node, got %q", last.Node)
		}
	})

	t.Run("rejects empty session id", func(t *testing.T) {
		graph, _ := NewGraph("a", map[string]Node[testState]{"a": finish("a")}, nil)
		engine := newTestEngine(t, graph, nil, Options{})

		_, err := engine.Start(context.Background(), "", testState{})
		if err == nil {
			t.Fatal("expected error for empty session id")
		}
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != "INVALID_SESSION" {
			t.Errorf("expected INVALID_SESSION, got %v", err)
		}
	})

	t.Run("enforces MaxSteps", func(t *testing.T) {
		// a and b route to each other forever.
		graph, err := NewGraph("a",
			map[string]Node[testState]{"a": visit("a"), "b": visit("b")},
			[]Edge[testState]{{From: "a", To: "b"}, {From: "b", To: "a"}},
		)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}

		engine := newTestEngine(t, graph, nil, Options{MaxSteps: 5})

		_, err = engine.Start(context.Background(), "s1", testState{})
		if err == nil {
			t.Fatal("expected MaxSteps error")
		}
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != "MAX_STEPS_EXCEEDED" {
			t.Errorf("expected MAX_STEPS_EXCEEDED, got %v", err)
		}
	})

	t.Run("node error aborts without committing the step", func(t *testing.T) {
		nodeErr := errors.New("boom")
		graph, err := NewGraph("a",
			map[string]Node[testState]{
				"a": NodeFunc[testState](func(context.Context, Session, testState) NodeResult[testState] {
					return Fail[testState](nodeErr)
				}),
			},
			nil,
		)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}

		st := store.NewMemStore[testState]()
		engine := newTestEngine(t, graph, st, Options{})

		_, err = engine.Start(context.Background(), "s1", testState{})
		if !errors.Is(err, nodeErr) {
			t.Fatalf("expected node error, got %v", err)
		}

		// Only the initial checkpoint exists.
		history := st.History("s1")
		if len(history) != 1 {
			t.Errorf("expected 1 checkpoint (initial), got %d", len(history))
		}
	})

	t.Run("missing route is an error", func(t *testing.T) {
		graph, err := NewGraph("a",
			map[string]Node[testState]{"a": visit("a"), "b": finish("b")},
			[]Edge[testState]{{From: "a", To: "b", When: func(testState) bool { return false }}},
		)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}

		engine := newTestEngine(t, graph, nil, Options{})

		_, err = engine.Start(context.Background(), "s1", testState{})
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != "NO_ROUTE" {
			t.Errorf("expected NO_ROUTE, got %v", err)
		}
	})

	t.Run("explicit route overrides edges", func(t *testing.T) {
		graph, err := NewGraph("a",
			map[string]Node[testState]{
				"a": NodeFunc[testState](func(context.Context, Session, testState) NodeResult[testState] {
					return NodeResult[testState]{Delta: testState{Path: []string{"a"}}, Route: Goto("c")}
				}),
				"b": finish("b"),
				"c": finish("c"),
			},
			[]Edge[testState]{{From: "a", To: "b"}},
		)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}

		engine := newTestEngine(t, graph, nil, Options{})

		result, err := engine.Start(context.Background(), "s1", testState{})
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if got := result.State.Path; len(got) != 2 || got[1] != "c" {
			t.Errorf("expected path [a c], got %v", got)
		}
	})
}

// suspendOnce suspends on first entry and terminates with the resume
// value recorded on re-entry.
func suspendOnce() Node[testState] {
	return NodeFunc[testState](func(_ context.Context, sess Session, _ testState) NodeResult[testState] {
		if sess.Resume == nil {
			return Suspend[testState](map[string]string{"question": "proceed?"})
		}
		answer, _ := sess.Resume.(string)
		return Terminate(testState{Path: []string{"resumed:" + answer}})
	})
}

func TestEngine_SuspendResume(t *testing.T) {
	newSuspendingEngine := func(t *testing.T) (*Engine[testState], *store.MemStore[testState]) {
		t.Helper()
		graph, err := NewGraph("a",
			map[string]Node[testState]{"a": visit("a"), "gate": suspendOnce()},
			[]Edge[testState]{{From: "a", To: "gate"}},
		)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}
		st := store.NewMemStore[testState]()
		return newTestEngine(t, graph, st, Options{}), st
	}

	t.Run("suspension pauses with the payload", func(t *testing.T) {
		engine, st := newSuspendingEngine(t)

		result, err := engine.Start(context.Background(), "s1", testState{})
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if !result.Paused {
			t.Fatal("expected paused result")
		}
		if result.Node != "gate" {
			t.Errorf("expected suspension at gate, got %q", result.Node)
		}

		var payload map[string]string
		if err := json.Unmarshal(result.Payload, &payload); err != nil {
			t.Fatalf("payload unmarshal failed: %v", err)
		}
		if payload["question"] != "proceed?" {
			t.Errorf("unexpected payload: %v", payload)
		}

		// The suspended checkpoint is durable.
		cp, err := st.Load(context.Background(), "s1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !cp.Suspended || cp.Node != "gate" {
			t.Errorf("checkpoint suspended=%v node=%q, want suspended at gate", cp.Suspended, cp.Node)
		}
	})

	t.Run("resume delivers the decision to the suspended node", func(t *testing.T) {
		engine, _ := newSuspendingEngine(t)

		if _, err := engine.Start(context.Background(), "s1", testState{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		result, err := engine.Resume(context.Background(), "s1", "yes")
		if err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		if result.Paused {
			t.Fatal("expected completion after resume")
		}
		path := result.State.Path
		if len(path) != 2 || path[1] != "resumed:yes" {
			t.Errorf("expected path [a resumed:yes], got %v", path)
		}
	})

	t.Run("resume of unknown session returns ErrSessionNotFound", func(t *testing.T) {
		engine, _ := newSuspendingEngine(t)

		_, err := engine.Resume(context.Background(), "nope", "yes")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("resume of a non-suspended session returns ErrNotSuspended", func(t *testing.T) {
		graph, err := NewGraph("a", map[string]Node[testState]{"a": finish("a")}, nil)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}
		engine := newTestEngine(t, graph, nil, Options{})

		if _, err := engine.Start(context.Background(), "s1", testState{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		_, err = engine.Resume(context.Background(), "s1", "yes")
		if !errors.Is(err, ErrNotSuspended) {
			t.Errorf("expected ErrNotSuspended, got %v", err)
		}
	})

	t.Run("failed resume leaves the session resumable", func(t *testing.T) {
		// The gate rejects the first decision type, then accepts.
		gate := NodeFunc[testState](func(_ context.Context, sess Session, _ testState) NodeResult[testState] {
			if sess.Resume == nil {
				return Suspend[testState]("waiting")
			}
			answer, ok := sess.Resume.(string)
			if !ok {
				return Fail[testState](errors.New("bad decision type"))
			}
			return Terminate(testState{Path: []string{answer}})
		})
		graph, err := NewGraph("gate", map[string]Node[testState]{"gate": gate}, nil)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}
		engine := newTestEngine(t, graph, nil, Options{})

		if _, err := engine.Start(context.Background(), "s1", testState{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if _, err := engine.Resume(context.Background(), "s1", 42); err == nil {
			t.Fatal("expected resume with wrong type to fail")
		}

		// The suspended checkpoint was never overwritten; retry works.
		result, err := engine.Resume(context.Background(), "s1", "ok")
		if err != nil {
			t.Fatalf("retry Resume failed: %v", err)
		}
		if result.Paused || result.State.Path[0] != "ok" {
			t.Errorf("unexpected retry result: %+v", result)
		}
	})
}

func TestEngine_Snapshot(t *testing.T) {
	t.Run("returns the suspended checkpoint without advancing", func(t *testing.T) {
		graph, err := NewGraph("gate", map[string]Node[testState]{"gate": suspendOnce()}, nil)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}
		st := store.NewMemStore[testState]()
		engine := newTestEngine(t, graph, st, Options{})

		if _, err := engine.Start(context.Background(), "s1", testState{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		before := len(st.History("s1"))
		result, err := engine.Snapshot(context.Background(), "s1")
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if !result.Paused || result.Node != "gate" {
			t.Errorf("expected paused snapshot at gate, got %+v", result)
		}
		if after := len(st.History("s1")); after != before {
			t.Errorf("Snapshot wrote %d checkpoints", after-before)
		}
	})

	t.Run("unknown session returns ErrSessionNotFound", func(t *testing.T) {
		graph, _ := NewGraph("a", map[string]Node[testState]{"a": finish("a")}, nil)
		engine := newTestEngine(t, graph, nil, Options{})

		_, err := engine.Snapshot(context.Background(), "missing")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestEngine_Validation(t *testing.T) {
	graph, _ := NewGraph("a", map[string]Node[testState]{"a": finish("a")}, nil)

	t.Run("missing graph", func(t *testing.T) {
		engine := New[testState](nil, testReducer, store.NewMemStore[testState](), nil, Options{})
		_, err := engine.Start(context.Background(), "s1", testState{})
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != "MISSING_GRAPH" {
			t.Errorf("expected MISSING_GRAPH, got %v", err)
		}
	})

	t.Run("missing reducer", func(t *testing.T) {
		engine := New(graph, nil, store.NewMemStore[testState](), nil, Options{})
		_, err := engine.Start(context.Background(), "s1", testState{})
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != "MISSING_REDUCER" {
			t.Errorf("expected MISSING_REDUCER, got %v", err)
		}
	})

	t.Run("missing store", func(t *testing.T) {
		engine := New(graph, testReducer, nil, nil, Options{})
		_, err := engine.Start(context.Background(), "s1", testState{})
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != "MISSING_STORE" {
			t.Errorf("expected MISSING_STORE, got %v", err)
		}
	})
}

func TestEngine_ConcurrentSessions(t *testing.T) {
	t.Run("independent sessions run concurrently without interference", func(t *testing.T) {
		graph, err := NewGraph("a",
			map[string]Node[testState]{"a": visit("a"), "b": finish("b")},
			[]Edge[testState]{{From: "a", To: "b"}},
		)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}
		engine := newTestEngine(t, graph, nil, Options{})

		const sessions = 20
		var wg sync.WaitGroup
		errs := make([]error, sessions)
		results := make([]RunResult[testState], sessions)

		for i := 0; i < sessions; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := "concurrent-" + string(rune('a'+i))
				results[i], errs[i] = engine.Start(context.Background(), id, testState{})
			}(i)
		}
		wg.Wait()

		for i := 0; i < sessions; i++ {
			if errs[i] != nil {
				t.Fatalf("session %d failed: %v", i, errs[i])
			}
			if len(results[i].State.Path) != 2 {
				t.Errorf("session %d path = %v, want 2 entries", i, results[i].State.Path)
			}
		}
	})
}

// mockEmitter records events for assertions.
type mockEmitter struct {
	mu     sync.Mutex
	events []emit.Event
}

func (m *mockEmitter) Emit(event emit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockEmitter) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Msg
	}
	return out
}

func TestEngine_Events(t *testing.T) {
	t.Run("emits lifecycle events in order", func(t *testing.T) {
		graph, err := NewGraph("a",
			map[string]Node[testState]{"a": visit("a"), "gate": suspendOnce()},
			[]Edge[testState]{{From: "a", To: "gate"}},
		)
		if err != nil {
			t.Fatalf("NewGraph failed: %v", err)
		}

		emitter := &mockEmitter{}
		engine := New(graph, testReducer, store.NewMemStore[testState](), emitter, Options{})

		if _, err := engine.Start(context.Background(), "s1", testState{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if _, err := engine.Resume(context.Background(), "s1", "go"); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}

		want := []string{"session_start", "step", "suspended", "session_resume", "step", "session_complete"}
		got := emitter.messages()
		if len(got) != len(want) {
			t.Fatalf("expected events %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})
}
