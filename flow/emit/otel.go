package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each Event into a short-lived OpenTelemetry span, for
// hosts that want execution traces rather than a log stream.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter from a tracer, e.g.
// otel.Tracer("flowfile-wasm").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit starts a span named after the event kind and ends it immediately;
// events are points in time, not durations.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), string(event.Kind))
	defer span.End()
	o.annotate(span, event)
}

func (o *OTelEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(context.Background(), string(event.Kind))
		o.annotate(span, event)
		span.End()
	}
	return nil
}

// Flush forces the global tracer provider to export pending spans, if it
// supports it (the SDK provider does; the no-op provider does not).
func (o *OTelEmitter) Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("flowfile.run_id", event.RunID),
		attribute.Int64("flowfile.node_id", event.NodeID),
	)
	if event.Msg != "" {
		span.SetAttributes(attribute.String("flowfile.msg", event.Msg))
	}
	o.addMetaAttributes(span, event.Meta)

	if event.Kind == KindExecutionError {
		span.SetStatus(codes.Error, event.Msg)
		if err, ok := event.Meta["error"].(error); ok {
			span.RecordError(err)
		} else {
			span.RecordError(fmt.Errorf("%s", event.Msg))
		}
	}
}

func (o *OTelEmitter) addMetaAttributes(span trace.Span, meta map[string]interface{}) {
	for key, value := range meta {
		switch key {
		case "result", "results", "error":
			// Structured values, not attribute-shaped; skipped.
			continue
		}
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(key, v))
		case int:
			span.SetAttributes(attribute.Int(key, v))
		case int64:
			span.SetAttributes(attribute.Int64(key, v))
		case float64:
			span.SetAttributes(attribute.Float64(key, v))
		case bool:
			span.SetAttributes(attribute.Bool(key, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(key, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
}
