package emit

import "testing"

func TestFanoutDeliversToAllChildren(t *testing.T) {
	a := NewBufferedEmitter()
	b := NewBufferedEmitter()
	f := Fanout(a, b)

	f.Emit(Event{RunID: "run-1", Msg: "hi"})

	if len(a.History("run-1")) != 1 {
		t.Error("expected child a to receive the event")
	}
	if len(b.History("run-1")) != 1 {
		t.Error("expected child b to receive the event")
	}
}

func TestFanoutEmitBatchAndFlush(t *testing.T) {
	a := NewBufferedEmitter()
	b := NewBufferedEmitter()
	f := Fanout(a, b)

	if err := f.EmitBatch(nil, []Event{{RunID: "run-1", Msg: "a"}}); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if err := f.Flush(nil); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(a.History("run-1")) != 1 || len(b.History("run-1")) != 1 {
		t.Error("expected both children to receive batched event")
	}
}

func TestFanoutInterfaceContract(_ *testing.T) {
	var _ Emitter = Fanout(NewNullEmitter(), NewBufferedEmitter())
}
