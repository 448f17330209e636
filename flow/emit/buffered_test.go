package emit

import (
	"testing"
	"time"
)

func TestBufferedEmitterStoresEvents(t *testing.T) {
	t.Run("stores single event", func(t *testing.T) {
		emitter := NewBufferedEmitter()
		emitter.Emit(Event{RunID: "run-001", NodeID: 1, Msg: "node started"})

		history := emitter.History("run-001")
		if len(history) != 1 {
			t.Fatalf("expected 1 event, got %d", len(history))
		}
		if history[0].NodeID != 1 {
			t.Errorf("expected NodeID = 1, got %d", history[0].NodeID)
		}
	})

	t.Run("isolates events by runID", func(t *testing.T) {
		emitter := NewBufferedEmitter()
		emitter.Emit(Event{RunID: "run-001", Msg: "a"})
		emitter.Emit(Event{RunID: "run-002", Msg: "b"})
		emitter.Emit(Event{RunID: "run-001", Msg: "c"})

		if got := len(emitter.History("run-001")); got != 2 {
			t.Errorf("expected 2 events for run-001, got %d", got)
		}
		if got := len(emitter.History("run-002")); got != 1 {
			t.Errorf("expected 1 event for run-002, got %d", got)
		}
	})

	t.Run("returns empty slice for unknown runID", func(t *testing.T) {
		emitter := NewBufferedEmitter()
		history := emitter.History("unknown")
		if history == nil {
			t.Error("expected empty slice, got nil")
		}
		if len(history) != 0 {
			t.Errorf("expected 0 events, got %d", len(history))
		}
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		emitter := NewBufferedEmitter()
		emitter.Emit(Event{RunID: "run-001", Msg: "a"})
		history := emitter.History("run-001")
		history[0].Msg = "mutated"
		if emitter.History("run-001")[0].Msg != "a" {
			t.Error("History leaked internal storage")
		}
	})
}

func TestBufferedEmitterEmitBatch(t *testing.T) {
	emitter := NewBufferedEmitter()
	events := []Event{
		{RunID: "run-001", Msg: "a"},
		{RunID: "run-001", Msg: "b"},
	}
	if err := emitter.EmitBatch(nil, events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if len(emitter.History("run-001")) != 2 {
		t.Fatalf("expected 2 events")
	}
}

func TestBufferedEmitterClear(t *testing.T) {
	t.Run("clears one run", func(t *testing.T) {
		emitter := NewBufferedEmitter()
		emitter.Emit(Event{RunID: "run-001", Msg: "a"})
		emitter.Emit(Event{RunID: "run-002", Msg: "b"})

		emitter.Clear("run-001")

		if len(emitter.History("run-001")) != 0 {
			t.Error("expected run-001 cleared")
		}
		if len(emitter.History("run-002")) != 1 {
			t.Error("expected run-002 untouched")
		}
	})

	t.Run("wildcard clears everything", func(t *testing.T) {
		emitter := NewBufferedEmitter()
		emitter.Emit(Event{RunID: "run-001", Msg: "a"})
		emitter.Emit(Event{RunID: "run-002", Msg: "b"})

		emitter.Clear("*")

		if len(emitter.History("run-001")) != 0 || len(emitter.History("run-002")) != 0 {
			t.Error("expected all runs cleared")
		}
	})
}

func TestBufferedEmitterThreadSafety(t *testing.T) {
	emitter := NewBufferedEmitter()
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				emitter.Emit(Event{RunID: "run-001", Msg: "concurrent"})
			}
			done <- true
		}()
	}
	readDone := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			emitter.History("run-001")
			time.Sleep(time.Millisecond)
		}
		readDone <- true
	}()
	for i := 0; i < 10; i++ {
		<-done
	}
	<-readDone

	if got := len(emitter.History("run-001")); got != 1000 {
		t.Errorf("expected 1000 events, got %d", got)
	}
}

func TestBufferedEmitterInterfaceContract(_ *testing.T) {
	var _ Emitter = NewBufferedEmitter()
}
