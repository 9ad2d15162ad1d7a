package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured log output to a
// writer.
//
// Supports two output modes:
//   - Text mode (default): human-readable format with key=value pairs.
//   - JSON mode: machine-readable JSON format, one event per line (JSONL).
//
// Example text output:
//
//	[node_visit] runID=run-001 seq=3 node=loop
//
// Example JSON output:
//
//	{"runID":"run-001","seq":3,"node":"loop","msg":"node_visit","meta":null}
//
// Usage:
//
//	// Text output to stderr.
//	emitter := emit.NewLogEmitter(os.Stderr, false)
//
//	// JSON output to file.
//	f, _ := os.Create("events.jsonl")
//	defer func() { _ = f.Close() }()
//	emitter := emit.NewLogEmitter(f, true)
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter.
//
// Parameters:
//   - writer: where to write the log output (e.g., os.Stderr, a file).
//     A nil writer defaults to os.Stdout.
//   - jsonMode: if true, emit JSONL; if false, emit text.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes an event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

// emitJSON writes an event as a single JSON line.
func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID string                 `json:"runID"`
		Seq   int                    `json:"seq"`
		Node  string                 `json:"node"`
		Msg   string                 `json:"msg"`
		Meta  map[string]interface{} `json:"meta"`
	}{
		RunID: event.RunID,
		Seq:   event.Seq,
		Node:  event.Node,
		Msg:   event.Msg,
		Meta:  event.Meta,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

// emitText writes an event in human-readable form.
func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] runID=%s seq=%d node=%s",
		event.Msg, event.RunID, event.Seq, event.Node)

	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}

	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes multiple events in order.
//
// In JSON mode events are written as JSONL; in text mode, one formatted
// line per event. Always attempts to write all events.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes directly without internal buffering.
// If you need flush control, wrap the writer with bufio.Writer and flush it
// directly.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
