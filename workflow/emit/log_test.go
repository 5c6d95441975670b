package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_Text(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	emitter.Emit(Event{
		SessionID: "s1",
		Step:      2,
		NodeID:    "safety_guardian",
		Msg:       "step",
		Meta:      map[string]interface{}{"next": "clinical_critic"},
	})

	got := buf.String()
	if !strings.HasPrefix(got, "[step] session=s1 step=2 node=safety_guardian") {
		t.Errorf("unexpected text output: %q", got)
	}
	if !strings.Contains(got, `"next":"clinical_critic"`) {
		t.Errorf("meta missing from output: %q", got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Error("output should end with newline")
	}
}

func TestLogEmitter_JSON(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{SessionID: "s1", Step: 1, NodeID: "drafter", Msg: "step"})
	emitter.Emit(Event{SessionID: "s1", Step: 1, NodeID: "human_approval", Msg: "suspended"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}

	var decoded struct {
		SessionID string `json:"session"`
		Step      int    `json:"step"`
		NodeID    string `json:"node"`
		Msg       string `json:"msg"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if decoded.Msg != "suspended" || decoded.NodeID != "human_approval" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestNullEmitter(t *testing.T) {
	// Must not panic; that's the whole contract.
	NewNullEmitter().Emit(Event{SessionID: "s1", Msg: "step"})
}
