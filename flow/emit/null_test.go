package emit

import "testing"

func TestNullEmitterDiscardsEverything(t *testing.T) {
	n := NewNullEmitter()
	n.Emit(Event{Kind: KindReady, Msg: "hello"})
	if err := n.EmitBatch(nil, []Event{{Kind: KindReady}}); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if err := n.Flush(nil); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestNullEmitterInterfaceContract(_ *testing.T) {
	var _ Emitter = NewNullEmitter()
}
