package foundry

import (
	"context"
	"fmt"

	"github.com/cerina/foundry-go/workflow"
)

// Decision actions accepted by the human approval gate.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Decision is the external human verdict delivered on resume.
type Decision struct {
	// Action is ActionApprove or ActionReject.
	Action string `json:"action"`

	// Feedback carries the human's specific feedback on rejection.
	Feedback string `json:"feedback,omitempty"`
}

// ApprovalRequest is the suspension payload handed to the caller when
// the workflow pauses for human review.
type ApprovalRequest struct {
	Draft     string     `json:"draft"`
	Critiques []Critique `json:"critiques"`
}

// HumanApproval is the human-in-the-loop gate.
//
// On first entry it suspends the session, yielding the current draft
// and the full critique log for the reviewer. When the session is
// resumed with a Decision:
//   - approve: terminal; the status becomes "approved" and the run
//     ends.
//   - reject: one Human critique (score 0, FAIL) carrying the
//     reviewer's feedback is appended, and the flow routes back to the
//     drafter unconditionally.
//
// A malformed or unknown decision is protocol misuse: it is surfaced
// as an error and the suspended session is left untouched, so the
// caller can retry with a valid decision.
type HumanApproval struct{}

// Run implements workflow.Node.
func (HumanApproval) Run(_ context.Context, sess workflow.Session, state ProtocolState) workflow.NodeResult[ProtocolState] {
	if sess.Resume == nil {
		return workflow.Suspend[ProtocolState](ApprovalRequest{
			Draft:     state.CurrentDraft,
			Critiques: state.CritiqueHistory,
		})
	}

	decision, ok := sess.Resume.(Decision)
	if !ok {
		return workflow.Fail[ProtocolState](fmt.Errorf("human approval: unexpected decision type %T", sess.Resume))
	}

	switch decision.Action {
	case ActionApprove:
		return workflow.Terminate(ProtocolState{FinalStatus: StatusApproved})

	case ActionReject:
		feedback := decision.Feedback
		if feedback == "" {
			feedback = "Human rejected"
		}
		return workflow.NodeResult[ProtocolState]{
			Delta: ProtocolState{CritiqueHistory: []Critique{{
				AgentName: "Human",
				Score:     0,
				Feedback:  feedback,
				Status:    VerdictFail,
			}}},
			Route: workflow.Goto(NodeDrafter),
		}

	default:
		return workflow.Fail[ProtocolState](fmt.Errorf("human approval: unknown action %q", decision.Action))
	}
}
