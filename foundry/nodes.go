package foundry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cerina/foundry-go/model"
	"github.com/cerina/foundry-go/workflow"
)

// defaultRequest is used when a session starts with an empty history.
const defaultRequest = "Create a generic CBT protocol."

// Drafter is the creative agent: it generates the initial CBT protocol
// or rewrites it to address the latest critique.
//
// Generation failure is never fatal to the session: the node returns a
// degraded draft with an explanatory message, still increments the
// iteration count, and marks the status "error", so the graph keeps
// moving and the draft fails review (or reaches the human gate)
// instead of crashing the run.
type Drafter struct {
	Model model.ChatModel
}

// Run implements workflow.Node.
func (d *Drafter) Run(ctx context.Context, _ workflow.Session, state ProtocolState) workflow.NodeResult[ProtocolState] {
	userQuery := defaultRequest
	if len(state.Messages) > 0 {
		userQuery = state.Messages[0]
	}

	var prompt string
	if latest, ok := state.LatestCritique(); ok {
		prompt = fmt.Sprintf(
			"Your previous draft was rejected. Fix this specific issue: %s. Rewrite the protocol for: %s",
			latest.Feedback, userQuery)
	} else {
		prompt = fmt.Sprintf(
			"Create a CBT clinical protocol for this request: %s. Be empathetic but structured.",
			userQuery)
	}

	out, err := d.Model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: "You are an expert CBT Clinical Architect."},
		{Role: model.RoleUser, Content: prompt},
	})
	if err != nil {
		return workflow.Continue(ProtocolState{
			CurrentDraft: fmt.Sprintf(
				"I encountered an internal error while generating the draft.\nDetails: %v\n\nPlease check the server logs.", err),
			IterationCount: state.IterationCount + 1,
			FinalStatus:    StatusError,
		})
	}

	return workflow.Continue(ProtocolState{
		CurrentDraft:   out.Text,
		IterationCount: state.IterationCount + 1,
		FinalStatus:    StatusReviewing,
	})
}

// safetyAssessment is the structured output requested from the safety
// reviewer.
type safetyAssessment struct {
	IsSafe       bool   `json:"is_safe"`
	HarmCategory string `json:"harm_category"`
	Reasoning    string `json:"reasoning"`
}

// SafetyGuardian is the compliance reviewer: it analyzes the draft for
// self-harm, violence, or illegal content.
//
// If the judgment call itself fails, the node fails open: it appends a
// default PASS critique with a score of 5 and an explanatory feedback
// string so the workflow cannot deadlock on a reviewer outage. This is
// a documented trade-off: an outage lets content pass automated review
// and reach the human gate unreviewed.
type SafetyGuardian struct {
	Model model.ChatModel
}

// Run implements workflow.Node.
func (g *SafetyGuardian) Run(ctx context.Context, _ workflow.Session, state ProtocolState) workflow.NodeResult[ProtocolState] {
	critique := Critique{
		AgentName: "SafetyGuardian",
		Score:     5,
		Feedback:  "Safety check failed due to system error. Proceeding with caution.",
		Status:    VerdictPass,
	}

	out, err := g.Model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: "You are a Safety Guardian. " +
			"If the content indicates self-harm, suicide, or violence, you MUST use the word 'SUICIDE' or 'HARM' in your reasoning. " +
			"Reject illegal content. Allow standard CBT educational content. " +
			`Respond with JSON: {"is_safe": bool, "harm_category": string, "reasoning": string}`},
		{Role: model.RoleUser, Content: "Assess this content:\n" + state.CurrentDraft},
	})
	if err == nil {
		var assessment safetyAssessment
		if jsonErr := json.Unmarshal(cleanJSON(out.Text), &assessment); jsonErr == nil {
			critique = Critique{
				AgentName: "SafetyGuardian",
				Score:     0,
				Feedback:  assessment.Reasoning,
				Status:    VerdictFail,
			}
			if assessment.IsSafe {
				critique.Score = 10
				critique.Status = VerdictPass
			}
		}
	}

	return workflow.Continue(ProtocolState{CritiqueHistory: []Critique{critique}})
}

// clinicalAssessment is the structured output requested from the
// clinical reviewer.
type clinicalAssessment struct {
	EmpathyScore   int    `json:"empathy_score"`
	StructureScore int    `json:"structure_score"`
	Feedback       string `json:"feedback"`
	Decision       string `json:"decision"`
}

// ClinicalCritic is the quality reviewer: it evaluates the draft for
// clinical empathy and adherence to CBT structure.
//
// Same fail-open policy as SafetyGuardian: a failed judgment call
// degrades to a PASS critique with score 5.
type ClinicalCritic struct {
	Model model.ChatModel
}

// Run implements workflow.Node.
func (c *ClinicalCritic) Run(ctx context.Context, _ workflow.Session, state ProtocolState) workflow.NodeResult[ProtocolState] {
	critique := Critique{
		AgentName: "ClinicalCritic",
		Score:     5,
		Feedback:  "Clinical check failed. Defaulting to PASS.",
		Status:    VerdictPass,
	}

	out, err := c.Model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: "You are a strict CBT Supervisor. Rate the empathy and structure. " +
			`Respond with JSON: {"empathy_score": int, "structure_score": int, "feedback": string, "decision": "PASS"|"FAIL"}`},
		{Role: model.RoleUser, Content: "Evaluate this draft:\n" + state.CurrentDraft},
	})
	if err == nil {
		var assessment clinicalAssessment
		if jsonErr := json.Unmarshal(cleanJSON(out.Text), &assessment); jsonErr == nil {
			status := VerdictFail
			if assessment.Decision == VerdictPass {
				status = VerdictPass
			}
			critique = Critique{
				AgentName: "ClinicalCritic",
				Score:     assessment.EmpathyScore,
				Feedback:  assessment.Feedback,
				Status:    status,
			}
		}
	}

	return workflow.Continue(ProtocolState{CritiqueHistory: []Critique{critique}})
}

// cleanJSON strips markdown code fences that models sometimes wrap
// around JSON-mode output.
func cleanJSON(content string) []byte {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return []byte(strings.TrimSpace(content))
}
