package emit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOTelEmitterEmit(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{
		Kind:   KindNodeExecuted,
		RunID:  "run-001",
		NodeID: 42,
		Msg:    "node ran",
		Meta:   map[string]interface{}{"row_count": 3},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != string(KindNodeExecuted) {
		t.Errorf("span name = %q, want %q", span.Name, KindNodeExecuted)
	}
	attrs := attributeMap(span.Attributes)
	if attrs["flowfile.run_id"] != "run-001" {
		t.Errorf("run_id = %v", attrs["flowfile.run_id"])
	}
	if attrs["flowfile.node_id"] != int64(42) {
		t.Errorf("node_id = %v", attrs["flowfile.node_id"])
	}
	if attrs["row_count"] != int64(3) {
		t.Errorf("row_count = %v", attrs["row_count"])
	}
	if !span.EndTime.After(span.StartTime) {
		t.Error("span was not ended")
	}
}

func TestOTelEmitterEmitWithError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{
		Kind:  KindExecutionError,
		RunID: "run-002",
		Msg:   "validation failed",
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected RecordError to add a span event")
	}
}

func TestOTelEmitterEmitBatch(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	err := emitter.EmitBatch(context.Background(), []Event{
		{Kind: KindReady, RunID: "run-1"},
		{Kind: KindFlowChanged, RunID: "run-1"},
	})
	if err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if len(exporter.GetSpans()) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(exporter.GetSpans()))
	}
}

func TestOTelEmitterInterfaceContract(_ *testing.T) {
	var _ Emitter = NewOTelEmitter(otel.Tracer("test"))
}

func attributeMap(attrs []attribute.KeyValue) map[string]interface{} {
	m := make(map[string]interface{})
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}
