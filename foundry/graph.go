package foundry

import (
	"strings"

	"github.com/cerina/foundry-go/model"
	"github.com/cerina/foundry-go/workflow"
)

// Node identifiers in the review graph.
const (
	NodeDrafter        = "drafter"
	NodeSafetyGuardian = "safety_guardian"
	NodeClinicalCritic = "clinical_critic"
	NodeCrisisManager  = "crisis_manager"
	NodeHumanApproval  = "human_approval"
)

// maxIterations is the drafting circuit breaker: once the iteration
// count exceeds it, the clinical route escalates to human review
// regardless of the critique verdict, bounding the rewrite loop.
const maxIterations = 3

// crisisKeywords flags severe safety feedback. Substring match, not
// word-boundary: "suicid" catches suicide/suicidal.
var crisisKeywords = []string{"harm", "suicid", "kill", "death", "emergency", "danger", "hurt"}

// isCrisisCritique reports whether the latest critique is a failure
// whose feedback mentions any crisis keyword (case-insensitive).
func isCrisisCritique(state ProtocolState) bool {
	latest, ok := state.LatestCritique()
	if !ok || latest.Status != VerdictFail {
		return false
	}
	feedback := strings.ToLower(latest.Feedback)
	for _, word := range crisisKeywords {
		if strings.Contains(feedback, word) {
			return true
		}
	}
	return false
}

// latestCritiqueFailed reports whether the most recent critique is a
// FAIL. Only reachable after a review node ran, so an empty critique
// log (treated as not-failed) cannot occur in practice.
func latestCritiqueFailed(state ProtocolState) bool {
	latest, ok := state.LatestCritique()
	return ok && latest.Status == VerdictFail
}

// iterationLimitReached is the circuit breaker predicate.
func iterationLimitReached(state ProtocolState) bool {
	return state.IterationCount > maxIterations
}

// BuildGraph assembles the immutable review topology:
//
//	drafter → safety_guardian
//	safety_guardian → crisis_manager (crisis keywords in a FAIL)
//	                | drafter        (standard FAIL, rewrite loop)
//	                | clinical_critic (PASS)
//	clinical_critic → human_approval (iteration circuit breaker)
//	                | drafter        (FAIL)
//	                | human_approval (PASS)
//	crisis_manager  → human_approval
//
// Conditional routes are ordered edges with an unconditional fallback
// last; the engine takes the first match. The human approval node ends
// the run on approve and routes back to the drafter explicitly on
// reject.
func BuildGraph(chat model.ChatModel, alerter Alerter) (*workflow.Graph[ProtocolState], error) {
	nodes := map[string]workflow.Node[ProtocolState]{
		NodeDrafter:        &Drafter{Model: chat},
		NodeSafetyGuardian: &SafetyGuardian{Model: chat},
		NodeClinicalCritic: &ClinicalCritic{Model: chat},
		NodeCrisisManager:  &CrisisManager{Alerter: alerter},
		NodeHumanApproval:  HumanApproval{},
	}

	edges := []workflow.Edge[ProtocolState]{
		{From: NodeDrafter, To: NodeSafetyGuardian},

		{From: NodeSafetyGuardian, To: NodeCrisisManager, When: isCrisisCritique},
		{From: NodeSafetyGuardian, To: NodeDrafter, When: latestCritiqueFailed},
		{From: NodeSafetyGuardian, To: NodeClinicalCritic},

		{From: NodeClinicalCritic, To: NodeHumanApproval, When: iterationLimitReached},
		{From: NodeClinicalCritic, To: NodeDrafter, When: latestCritiqueFailed},
		{From: NodeClinicalCritic, To: NodeHumanApproval},

		{From: NodeCrisisManager, To: NodeHumanApproval},
	}

	return workflow.NewGraph(NodeDrafter, nodes, edges)
}
