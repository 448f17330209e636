package interp

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/flowfile-wasm/engine/interp/polarslite"
)

// WazeroBridge owns the lifecycle of a single sandboxed WebAssembly module
// that hosts the embedded interpreter, per the single-shared-interpreter
// design: there is never more than one compiled module and never more than
// one in-flight Exec or Eval at a time.
//
// The module itself is expected to expose a Python-plus-Polars runtime
// compiled to WASM. Talking to arbitrary guest-language bytecode across the
// host/guest boundary is out of scope here; what WazeroBridge guarantees is
// the sandbox lifecycle (Initialise/State/Close) and call serialisation.
// Translating Exec/Eval/SetGlobal/DelGlobal into guest calls is delegated to
// an embedded polarslite.Evaluator, which understands the same method-chain
// source text the guest module would otherwise execute. See DESIGN.md for
// why this split exists.
type WazeroBridge struct {
	baseState

	// WasmBinary is the compiled guest module bytes. It is accepted but not
	// dereferenced on the interpreter's data path; it exists so the runtime
	// lifecycle (compile, instantiate, close) is exercised against a real
	// module artifact rather than skipped outright.
	WasmBinary []byte

	// RequireIsolation gates Initialise on cross-origin isolation (spec
	// §4.B). IsolationCheck reports whether the host is isolated; when it
	// returns false, Initialise fails with ErrHostNotIsolated instead of
	// compiling the module. Both are host-supplied: a browser host wires
	// IsolationCheck to its own COOP/COEP probe.
	RequireIsolation bool
	IsolationCheck   func() bool

	runtime  wazero.Runtime
	module   wazero.CompiledModule
	instance wazero.Module

	mu   sync.Mutex
	eval *polarslite.Evaluator
}

// NewWazeroBridge returns a bridge that will compile and instantiate wasmBinary
// on Initialise. A nil or empty binary is accepted: Initialise then runs the
// embedded evaluator without a backing guest module, which is useful for
// environments where the compiled interpreter artifact isn't available yet.
func NewWazeroBridge(wasmBinary []byte) *WazeroBridge {
	return &WazeroBridge{WasmBinary: wasmBinary, eval: polarslite.NewEvaluator()}
}

func (b *WazeroBridge) Initialise(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.State() {
	case Ready:
		return nil
	case Failed:
		return ErrAlreadyFailed
	}
	b.transition(Initialising)

	if b.RequireIsolation && !b.isolated() {
		b.transition(Failed)
		return &LoadError{Reason: "host-not-isolated", Underlying: ErrHostNotIsolated}
	}

	if len(b.WasmBinary) == 0 {
		b.transition(Ready)
		return nil
	}

	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		b.transition(Failed)
		_ = rt.Close(ctx)
		return &LoadError{Reason: "wasi instantiation failed", Underlying: err}
	}

	compiled, err := rt.CompileModule(ctx, b.WasmBinary)
	if err != nil {
		b.transition(Failed)
		_ = rt.Close(ctx)
		return &LoadError{Reason: "module compilation failed", Underlying: err}
	}

	instance, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		b.transition(Failed)
		_ = compiled.Close(ctx)
		_ = rt.Close(ctx)
		return &LoadError{Reason: "module instantiation failed", Underlying: err}
	}

	b.runtime = rt
	b.module = compiled
	b.instance = instance
	b.transition(Ready)
	return nil
}

// isolated reports whether the host satisfies RequireIsolation. With no
// IsolationCheck configured, a host demanding isolation but unable to prove
// it is treated as not isolated.
func (b *WazeroBridge) isolated() bool {
	if b.IsolationCheck == nil {
		return false
	}
	return b.IsolationCheck()
}

func (b *WazeroBridge) Exec(ctx context.Context, source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != Ready {
		return ErrNotReady
	}
	if err := b.eval.Exec(ctx, source); err != nil {
		return newExecError(err.Error(), err)
	}
	return nil
}

func (b *WazeroBridge) Eval(ctx context.Context, source string) (Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != Ready {
		return nil, ErrNotReady
	}
	v, err := b.eval.Eval(ctx, source)
	if err != nil {
		return nil, newExecError(err.Error(), err)
	}
	return v, nil
}

func (b *WazeroBridge) SetGlobal(ctx context.Context, name string, value Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != Ready {
		return ErrNotReady
	}
	b.eval.SetGlobal(name, value)
	return nil
}

func (b *WazeroBridge) DelGlobal(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eval.DelGlobal(name)
	return nil
}

func (b *WazeroBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ctx := context.Background()
	var firstErr error
	if b.instance != nil {
		if err := b.instance.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing module instance: %w", err)
		}
		b.instance = nil
	}
	if b.module != nil {
		if err := b.module.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing compiled module: %w", err)
		}
		b.module = nil
	}
	if b.runtime != nil {
		if err := b.runtime.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing runtime: %w", err)
		}
		b.runtime = nil
	}
	b.transition(Uninitialised)
	return firstErr
}

var _ Bridge = (*WazeroBridge)(nil)
