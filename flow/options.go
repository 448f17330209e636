package flow

import (
	"time"

	"github.com/flowfile-wasm/engine/flow/emit"
	"github.com/flowfile-wasm/engine/flow/store"
	"github.com/flowfile-wasm/engine/interp"
)

// Option configures an Engine at construction time.
type Option func(*engineConfig) error

// engineConfig collects options before New applies defaults for anything
// left unset.
type engineConfig struct {
	previewRowCap   int
	emitter         emit.Emitter
	metrics         *EngineMetrics
	interpreter     interp.Bridge
	largeContent    store.Store
	inlineThreshold int
	clock           func() time.Time
}

func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		previewRowCap:   100,
		emitter:         emit.NewNullEmitter(),
		interpreter:     nil,
		largeContent:    store.NewMemStore(),
		inlineThreshold: store.InlineThreshold,
		clock:           time.Now,
	}
}

// WithPreviewRowCap bounds how many rows a preview materialisation may
// return (spec §4.F, default 100).
func WithPreviewRowCap(n int) Option {
	return func(cfg *engineConfig) error {
		if n <= 0 {
			return &InvalidOptionError{Option: "WithPreviewRowCap", Reason: "must be positive"}
		}
		cfg.previewRowCap = n
		return nil
	}
}

// WithEmitter sets the Host Interface event sink. Default: a no-op
// emitter, for hosts with no interest in the event stream.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		if e == nil {
			return &InvalidOptionError{Option: "WithEmitter", Reason: "emitter must not be nil"}
		}
		cfg.emitter = e
		return nil
	}
}

// WithMetrics attaches a Prometheus metrics collector. Default: metrics
// disabled (nil).
func WithMetrics(m *EngineMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithInterpreter sets the Interpreter Bridge the engine drives during
// execution. Required; New returns ErrInterpreterUnavailable if omitted.
func WithInterpreter(b interp.Bridge) Option {
	return func(cfg *engineConfig) error {
		if b == nil {
			return &InvalidOptionError{Option: "WithInterpreter", Reason: "bridge must not be nil"}
		}
		cfg.interpreter = b
		return nil
	}
}

// WithLargeContentStore sets the backend for large CSV/file payloads.
// Default: an in-memory store, suitable for single-session hosts.
func WithLargeContentStore(s store.Store) Option {
	return func(cfg *engineConfig) error {
		if s == nil {
			return &InvalidOptionError{Option: "WithLargeContentStore", Reason: "store must not be nil"}
		}
		cfg.largeContent = s
		return nil
	}
}

// WithInlineThreshold overrides the byte-size boundary at which file
// content routes to the large-content store instead of inline storage
// on the node (spec §4.A, default 5 MiB).
func WithInlineThreshold(bytes int) Option {
	return func(cfg *engineConfig) error {
		if bytes <= 0 {
			return &InvalidOptionError{Option: "WithInlineThreshold", Reason: "must be positive"}
		}
		cfg.inlineThreshold = bytes
		return nil
	}
}

// WithClock overrides the engine's time source. Tests use this to make
// timestamped events and durations deterministic.
func WithClock(now func() time.Time) Option {
	return func(cfg *engineConfig) error {
		if now == nil {
			return &InvalidOptionError{Option: "WithClock", Reason: "clock func must not be nil"}
		}
		cfg.clock = now
		return nil
	}
}

// InvalidOptionError reports a functional option called with an
// out-of-range or nil argument.
type InvalidOptionError struct {
	Option string
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return "flow: invalid option " + e.Option + ": " + e.Reason
}
