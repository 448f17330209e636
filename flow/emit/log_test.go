package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterTextMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)
	l.Emit(Event{Kind: KindNodeExecuted, RunID: "run-1", NodeID: 7, Msg: "ok"})

	out := buf.String()
	if !strings.Contains(out, "node-executed") || !strings.Contains(out, "run-1") || !strings.Contains(out, "7") {
		t.Errorf("unexpected log line: %q", out)
	}
}

func TestLogEmitterTextModeWithoutNode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)
	l.Emit(Event{Kind: KindReady, RunID: "", Msg: "bridge ready"})

	out := buf.String()
	if strings.Contains(out, "node=") {
		t.Errorf("did not expect node= for document-level event: %q", out)
	}
}

func TestLogEmitterJSONMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, true)
	l.Emit(Event{Kind: KindExecutionError, RunID: "run-2", NodeID: 3, Msg: "boom"})

	var line logLine
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if line.Kind != "execution-error" || line.RunID != "run-2" || line.NodeID != 3 || line.Msg != "boom" {
		t.Errorf("unexpected decoded line: %+v", line)
	}
}

func TestLogEmitterDefaultsToStdout(t *testing.T) {
	l := NewLogEmitter(nil, false)
	if l.writer == nil {
		t.Error("expected a non-nil default writer")
	}
}

func TestLogEmitterEmitBatch(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, true)
	err := l.EmitBatch(nil, []Event{
		{Kind: KindReady, Msg: "a"},
		{Kind: KindFlowChanged, Msg: "b"},
	})
	if err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("expected 2 lines, got %q", buf.String())
	}
}

func TestLogEmitterInterfaceContract(_ *testing.T) {
	var _ Emitter = NewLogEmitter(nil, false)
}
