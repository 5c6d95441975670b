package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured log output to a
// writer.
//
// Supports two output modes:
//   - Text mode (default): human-readable format with key=value pairs
//   - JSON mode: machine-readable JSON, one event per line (JSONL)
//
// Example text output:
//
//	[step] session=s1 step=2 node=safety_guardian
//
// Example JSON output:
//
//	{"session":"s1","step":2,"node":"safety_guardian","msg":"step","meta":null}
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter writing to the provided
// writer (os.Stdout if nil). If jsonMode is true, events are emitted as
// JSONL instead of text.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes an event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		SessionID string                 `json:"session"`
		Step      int                    `json:"step"`
		NodeID    string                 `json:"node"`
		Msg       string                 `json:"msg"`
		Meta      map[string]interface{} `json:"meta"`
	}{
		SessionID: event.SessionID,
		Step:      event.Step,
		NodeID:    event.NodeID,
		Msg:       event.Msg,
		Meta:      event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] session=%s step=%d node=%s",
		event.Msg, event.SessionID, event.Step, event.NodeID)

	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}

	fmt.Fprint(l.writer, "\n")
}
