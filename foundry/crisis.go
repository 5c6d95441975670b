package foundry

import (
	"context"
	"log"

	"github.com/cerina/foundry-go/workflow"
)

// SafeMessage is the fixed replacement draft produced when a severe
// safety violation is detected.
const SafeMessage = "I cannot fulfill this request. It sounds like you are going through a difficult time. " +
	"Please remember that you are not alone.\n\n" +
	"If you are in immediate danger, please call emergency services (911) or 988."

// CrisisManager activates only when the safety review flags severe
// risk. It raises an external alert and overwrites the potentially
// harmful draft with a safe, supportive message.
//
// Producing the safe replacement draft is the priority guarantee:
// alert delivery failures (including network errors) are logged and
// swallowed, never aborting the step.
type CrisisManager struct {
	Alerter Alerter
}

// Run implements workflow.Node.
func (c *CrisisManager) Run(ctx context.Context, sess workflow.Session, state ProtocolState) workflow.NodeResult[ProtocolState] {
	reason := "safety violation"
	if latest, ok := state.LatestCritique(); ok {
		reason = latest.Feedback
	}

	if c.Alerter != nil {
		if err := c.Alerter.Alert(ctx, Alert{
			SessionID: sess.ID,
			Draft:     state.CurrentDraft,
			Reason:    reason,
		}); err != nil {
			log.Printf("crisis alert delivery failed (continuing): %v", err)
		}
	}

	// Rejected rather than approved/error so the human gate knows this
	// was not a standard pass.
	return workflow.Continue(ProtocolState{
		CurrentDraft: SafeMessage,
		FinalStatus:  StatusRejected,
	})
}
