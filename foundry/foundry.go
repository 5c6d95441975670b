package foundry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cerina/foundry-go/model"
	"github.com/cerina/foundry-go/workflow"
	"github.com/cerina/foundry-go/workflow/emit"
	"github.com/cerina/foundry-go/workflow/store"
)

// Report statuses rendered to callers.
const (
	ReportPaused    = "PAUSED"
	ReportCompleted = "COMPLETED"
	ReportIdle      = "IDLE"
)

// Report is the transport-neutral rendering of a session's state,
// shared by the HTTP API, the CLI, and the MCP server.
type Report struct {
	// Status is PAUSED, COMPLETED, or IDLE.
	Status string `json:"status"`

	// Node is the suspended node when paused.
	Node string `json:"node,omitempty"`

	// Draft and Critiques carry the suspension payload when paused.
	Draft     string     `json:"draft,omitempty"`
	Critiques []Critique `json:"critiques,omitempty"`

	// FinalStatus and FinalDraft describe a completed session.
	FinalStatus string `json:"final_status,omitempty"`
	FinalDraft  string `json:"final_draft,omitempty"`
}

// Foundry is the service facade over the review workflow: it owns the
// engine and maps engine results to Reports.
type Foundry struct {
	engine *workflow.Engine[ProtocolState]
}

// maxEngineSteps bounds a single Start/Resume call. The domain
// circuit breaker caps drafting passes at 4 before forcing human
// review, so a healthy session commits well under 20 steps per call.
const maxEngineSteps = 50

// New assembles a Foundry from its collaborators.
//
// Parameters:
//   - chat: the LLM capability used by the drafter and reviewers
//   - alerter: the crisis notification sink (NopAlerter to disable)
//   - st: checkpoint persistence
//   - emitter: observability events (may be nil)
//   - metrics: Prometheus collector (may be nil)
func New(chat model.ChatModel, alerter Alerter, st store.Store[ProtocolState], emitter emit.Emitter, metrics *workflow.Metrics) (*Foundry, error) {
	graph, err := BuildGraph(chat, alerter)
	if err != nil {
		return nil, fmt.Errorf("failed to build review graph: %w", err)
	}

	engine := workflow.New(graph, Reduce, st, emitter, workflow.Options{MaxSteps: maxEngineSteps}).
		WithMetrics(metrics)

	return &Foundry{engine: engine}, nil
}

// Start begins (or restarts) a session for the given user query and
// runs it until it pauses for human review or completes.
func (f *Foundry) Start(ctx context.Context, sessionID, userQuery string) (Report, error) {
	initial := ProtocolState{
		Messages:    []string{userQuery},
		FinalStatus: StatusDrafting,
	}

	result, err := f.engine.Start(ctx, sessionID, initial)
	if err != nil {
		return Report{}, err
	}
	return renderResult(result)
}

// Review submits a human decision to a session paused at the approval
// gate and continues execution.
//
// Returns workflow.ErrSessionNotFound if the session does not exist
// and workflow.ErrNotSuspended if it is not awaiting review.
func (f *Foundry) Review(ctx context.Context, sessionID string, decision Decision) (Report, error) {
	result, err := f.engine.Resume(ctx, sessionID, decision)
	if err != nil {
		return Report{}, err
	}
	return renderResult(result)
}

// State returns a read-only snapshot of a session without advancing
// execution. A session with no checkpoint reports IDLE.
func (f *Foundry) State(ctx context.Context, sessionID string) (Report, error) {
	result, err := f.engine.Snapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, workflow.ErrSessionNotFound) {
			return Report{Status: ReportIdle}, nil
		}
		return Report{}, err
	}
	return renderResult(result)
}

func renderResult(result workflow.RunResult[ProtocolState]) (Report, error) {
	if result.Paused {
		var req ApprovalRequest
		if err := json.Unmarshal(result.Payload, &req); err != nil {
			return Report{}, fmt.Errorf("failed to decode approval payload: %w", err)
		}
		return Report{
			Status:    ReportPaused,
			Node:      result.Node,
			Draft:     req.Draft,
			Critiques: req.Critiques,
		}, nil
	}

	return Report{
		Status:      ReportCompleted,
		FinalStatus: result.State.FinalStatus,
		FinalDraft:  result.State.CurrentDraft,
	}, nil
}
