// Package foundry implements the clinical protocol review workflow: a
// drafting agent, automated safety and clinical reviewers, a crisis
// handler, and a human approval gate, executed by the workflow engine.
package foundry

// Workflow status values for ProtocolState.FinalStatus. Informational:
// they reflect the most recent outcome and are never used for routing.
const (
	StatusDrafting  = "drafting"
	StatusReviewing = "reviewing"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusError     = "error"
)

// Critique verdicts.
const (
	VerdictPass = "PASS"
	VerdictFail = "FAIL"
)

// Critique represents a single piece of feedback from a reviewer.
//
// Critiques are immutable once created; identity is positional within
// the critique history.
type Critique struct {
	// AgentName names the reviewer (e.g. "SafetyGuardian", "Human").
	AgentName string `json:"agent_name"`

	// Score is a numerical quality score, 0-10.
	Score int `json:"score"`

	// Feedback is the specific actionable feedback provided.
	Feedback string `json:"feedback"`

	// Status is VerdictPass or VerdictFail.
	Status string `json:"status"`
}

// ProtocolState is the central state record threaded through the
// workflow, tracking the request history, the artifact being drafted,
// and the audit log of critiques.
type ProtocolState struct {
	// Messages is the ordered, append-only history of user inputs.
	// The drafter reads the first entry to recover the original
	// request.
	Messages []string `json:"messages"`

	// CurrentDraft is the current content of the clinical protocol
	// being drafted. Overwritten by each drafting pass and by crisis
	// handling.
	CurrentDraft string `json:"current_draft"`

	// IterationCount counts drafting passes. Monotonically
	// non-decreasing within a session; the routing circuit breaker
	// reads it to force human review after repeated rewrites.
	IterationCount int `json:"iteration_count"`

	// CritiqueHistory is the append-only log of all critiques received
	// during the session. Never truncated or rewritten.
	CritiqueHistory []Critique `json:"critique_history"`

	// FinalStatus is the current high-level status of the workflow.
	FinalStatus string `json:"final_status"`
}

// LatestCritique returns the most recent critique and whether one
// exists.
func (s ProtocolState) LatestCritique() (Critique, bool) {
	if len(s.CritiqueHistory) == 0 {
		return Critique{}, false
	}
	return s.CritiqueHistory[len(s.CritiqueHistory)-1], true
}

// Reduce merges a node's partial update into the previous state.
//
// Merge policy, per field:
//   - Messages, CritiqueHistory: append (audit trails)
//   - CurrentDraft, FinalStatus: overwrite when the delta is non-empty
//   - IterationCount: overwrite only when the delta carries a larger
//     value, which makes the non-decreasing invariant structural
func Reduce(prev, delta ProtocolState) ProtocolState {
	prev.Messages = append(prev.Messages, delta.Messages...)
	prev.CritiqueHistory = append(prev.CritiqueHistory, delta.CritiqueHistory...)
	if delta.CurrentDraft != "" {
		prev.CurrentDraft = delta.CurrentDraft
	}
	if delta.IterationCount > prev.IterationCount {
		prev.IterationCount = delta.IterationCount
	}
	if delta.FinalStatus != "" {
		prev.FinalStatus = delta.FinalStatus
	}
	return prev
}
