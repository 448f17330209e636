package flow

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// idSeq hands out monotonically increasing node/edge identifiers. Each
// Model owns one, so ids are unique within a document but not globally.
type idSeq struct {
	next int64
}

// newIDSeq returns a sequence that starts at 1 (0 is never a valid id).
func newIDSeq() *idSeq {
	return &idSeq{next: 0}
}

func (s *idSeq) next1() int64 {
	return atomic.AddInt64(&s.next, 1)
}

// bumpPast ensures subsequent next1() calls never collide with an id
// already present in an imported document.
func (s *idSeq) bumpPast(id int64) {
	for {
		cur := atomic.LoadInt64(&s.next)
		if id <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&s.next, cur, id) {
			return
		}
	}
}

// syntheticBinding is the interpreter global-namespace name used for a
// node that has no explicit NodeReference (spec §3).
func syntheticBinding(id int64) string {
	return fmt.Sprintf("df_%d", id)
}

// newRunID generates a unique identifier for one execution pass, used to
// correlate emitted events across a run (spec §6 event stream).
func newRunID() string {
	return uuid.NewString()
}

// newDocumentID generates a UUID-string document identifier. Export does
// not use it; the integer flowfile_id comes from newDocumentIDInt.
func newDocumentID() string {
	return uuid.NewString()
}

// newDocumentIDInt generates a flowfile_id (spec §6 document format
// declares this field as an int, unlike the run/document identifiers used
// elsewhere which are UUID strings) by folding a fresh UUID's bytes down to
// an int64 via XOR.
func newDocumentIDInt() int64 {
	u := uuid.New()
	var n int64
	for i := 0; i < 8; i++ {
		n = (n << 8) | int64(u[i]^u[i+8])
	}
	if n < 0 {
		n = -n
	}
	return n
}
