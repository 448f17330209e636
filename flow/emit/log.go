package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes structured log output to a writer, in text or JSON
// mode. This is the default emitter for development hosts.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer defaults to os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		enc, err := json.Marshal(logLine{
			Kind: string(event.Kind), RunID: event.RunID, NodeID: event.NodeID, Msg: event.Msg,
		})
		if err != nil {
			return
		}
		fmt.Fprintln(l.writer, string(enc))
		return
	}
	if event.NodeID != 0 {
		fmt.Fprintf(l.writer, "[%s] run=%s node=%d %s\n", event.Kind, event.RunID, event.NodeID, event.Msg)
		return
	}
	fmt.Fprintf(l.writer, "[%s] run=%s %s\n", event.Kind, event.RunID, event.Msg)
}

type logLine struct {
	Kind   string `json:"kind"`
	RunID  string `json:"run_id,omitempty"`
	NodeID int64  `json:"node_id,omitempty"`
	Msg    string `json:"msg,omitempty"`
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

func (l *LogEmitter) Flush(context.Context) error {
	if f, ok := l.writer.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}
