package emit

import "context"

// Emitter receives and processes events from graph mutation and execution.
//
// Implementations should be non-blocking, thread-safe, and resilient:
// a slow or failing backend must never stall or crash a pass.
type Emitter interface {
	// Emit sends a single event to the configured backend. Must not
	// block the execution pass; implementations that need to do I/O
	// should buffer and flush asynchronously.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation. Individual event
	// failures should be logged, not returned; only catastrophic
	// configuration failures should produce a non-nil error.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events are delivered or ctx is
	// done. Safe to call more than once.
	Flush(ctx context.Context) error
}

// multiEmitter fans a single Emit/EmitBatch/Flush out to every child.
type multiEmitter struct {
	children []Emitter
}

// Fanout combines several emitters into one, e.g. a LogEmitter for
// development output plus an OTelEmitter for tracing.
func Fanout(children ...Emitter) Emitter {
	return &multiEmitter{children: children}
}

func (m *multiEmitter) Emit(event Event) {
	for _, c := range m.children {
		c.Emit(event)
	}
}

func (m *multiEmitter) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, c := range m.children {
		if err := c.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiEmitter) Flush(ctx context.Context) error {
	var firstErr error
	for _, c := range m.children {
		if err := c.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
