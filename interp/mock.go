package interp

import (
	"context"

	"github.com/flowfile-wasm/engine/interp/polarslite"
)

// MockBridge runs polarslite directly against Go's process, skipping the
// sandboxed WASM runtime entirely. It exists for engine unit tests that
// want real Polars-flavoured semantics without the cost and ceremony of a
// wazero-hosted module (see WazeroBridge for the production path).
type MockBridge struct {
	baseState
	eval *polarslite.Evaluator

	// FailInitialise, when set, makes Initialise return this error
	// instead of succeeding, to exercise InterpreterUnavailable paths.
	FailInitialise error

	// FailIsolation, when true, makes Initialise fail with ErrHostNotIsolated
	// instead of succeeding, to exercise the host-not-isolated path.
	FailIsolation bool
}

// NewMockBridge returns an uninitialised MockBridge.
func NewMockBridge() *MockBridge {
	return &MockBridge{eval: polarslite.NewEvaluator()}
}

func (b *MockBridge) Initialise(ctx context.Context) error {
	switch b.State() {
	case Ready:
		return nil
	case Failed:
		return ErrAlreadyFailed
	}
	b.transition(Initialising)
	if b.FailIsolation {
		b.transition(Failed)
		return &LoadError{Reason: "host-not-isolated", Underlying: ErrHostNotIsolated}
	}
	if b.FailInitialise != nil {
		b.transition(Failed)
		return &LoadError{Reason: "mock-configured-failure", Underlying: b.FailInitialise}
	}
	b.transition(Ready)
	return nil
}

func (b *MockBridge) Exec(ctx context.Context, source string) error {
	if b.State() != Ready {
		return ErrNotReady
	}
	if err := b.eval.Exec(ctx, source); err != nil {
		return newExecError(err.Error(), err)
	}
	return nil
}

func (b *MockBridge) Eval(ctx context.Context, source string) (Value, error) {
	if b.State() != Ready {
		return nil, ErrNotReady
	}
	v, err := b.eval.Eval(ctx, source)
	if err != nil {
		return nil, newExecError(err.Error(), err)
	}
	return v, nil
}

func (b *MockBridge) SetGlobal(ctx context.Context, name string, value Value) error {
	if b.State() != Ready {
		return ErrNotReady
	}
	b.eval.SetGlobal(name, value)
	return nil
}

func (b *MockBridge) DelGlobal(ctx context.Context, name string) error {
	b.eval.DelGlobal(name)
	return nil
}

func (b *MockBridge) Close() error {
	b.transition(Uninitialised)
	return nil
}

var _ Bridge = (*MockBridge)(nil)
