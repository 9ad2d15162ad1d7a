package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_TextMode(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	emitter.Emit(Event{
		RunID: "run-001",
		Seq:   3,
		Node:  "loop",
		Msg:   "node_visit",
	})

	out := buf.String()
	if !strings.HasPrefix(out, "[node_visit] ") {
		t.Errorf("expected [node_visit] prefix, got %q", out)
	}
	for _, want := range []string{"runID=run-001", "seq=3", "node=loop"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestLogEmitter_TextModeWithMeta(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	emitter.Emit(Event{
		RunID: "run-001",
		Seq:   4,
		Node:  "loop",
		Msg:   "node_stored",
		Meta:  map[string]interface{}{"op": "widen"},
	})

	if !strings.Contains(buf.String(), `meta={"op":"widen"}`) {
		t.Errorf("expected meta rendering, got %q", buf.String())
	}
}

func TestLogEmitter_JSONMode(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{
		RunID: "run-001",
		Seq:   1,
		Node:  "entry",
		Msg:   "node_visit",
	})

	var decoded struct {
		RunID string `json:"runID"`
		Seq   int    `json:"seq"`
		Node  string `json:"node"`
		Msg   string `json:"msg"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if decoded.RunID != "run-001" || decoded.Seq != 1 || decoded.Node != "entry" || decoded.Msg != "node_visit" {
		t.Errorf("unexpected decoded event: %+v", decoded)
	}
}

func TestLogEmitter_EmitBatch(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	events := []Event{
		{RunID: "r", Seq: 1, Node: "a", Msg: "node_visit"},
		{RunID: "r", Seq: 2, Node: "b", Msg: "node_visit"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 JSONL lines, got %d: %q", len(lines), buf.String())
	}
}

func TestLogEmitter_NilWriterDefaults(t *testing.T) {
	emitter := NewLogEmitter(nil, false)
	if emitter.writer == nil {
		t.Error("expected nil writer to default to stdout")
	}
}

func TestLogEmitter_FlushIsNoop(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)
	if err := emitter.Flush(context.Background()); err != nil {
		t.Errorf("Flush must not fail: %v", err)
	}
}
