package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestSpanAttributeBuilder(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithTool("move_file").
		WithOperation(OperationMove).
		WithFileID(testFileID).
		WithMimeType("application/pdf").
		WithBytes(42).
		Build()

	if len(attrs) != 5 {
		t.Fatalf("expected 5 attributes, got %d", len(attrs))
	}

	got := make(map[string]interface{})
	for _, a := range attrs {
		got[string(a.Key)] = a.Value.AsInterface()
	}
	if got[SpanAttrTool] != "move_file" {
		t.Errorf("tool = %v", got[SpanAttrTool])
	}
	if got[SpanAttrFileID] != testFileID {
		t.Errorf("file id = %v", got[SpanAttrFileID])
	}
	if got[SpanAttrBytes] != int64(42) {
		t.Errorf("bytes = %v", got[SpanAttrBytes])
	}
}

func TestSpanAttributeBuilder_EmptyValues(t *testing.T) {
	attrs := NewSpanAttributeBuilder().WithFileID("").WithMimeType("").Build()
	if len(attrs) != 0 {
		t.Errorf("expected empty values to be skipped, got %d attributes", len(attrs))
	}
}

func TestStartToolSpan(t *testing.T) {
	rec := withSpanRecorder(t)

	ctx, span := StartToolSpan(context.Background(), "get_file_info")
	if GetTraceID(ctx) == "" || GetSpanID(ctx) == "" {
		t.Error("expected valid span context")
	}
	EndSpan(span, nil)

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if ended[0].Name() != "tool.get_file_info" {
		t.Errorf("name = %q", ended[0].Name())
	}
	if ended[0].SpanKind() != trace.SpanKindServer {
		t.Errorf("kind = %v", ended[0].SpanKind())
	}
	if ended[0].Status().Code != codes.Ok {
		t.Errorf("status = %v", ended[0].Status().Code)
	}
}

func TestStartGoogleAPISpan_Error(t *testing.T) {
	rec := withSpanRecorder(t)

	_, span := StartGoogleAPISpan(context.Background(), ServiceDrive, OperationDelete)
	EndSpan(span, errors.New("File not found: 1AbC"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	s := ended[0]
	if s.Name() != "google.drive.delete" {
		t.Errorf("name = %q", s.Name())
	}
	if s.SpanKind() != trace.SpanKindClient {
		t.Errorf("kind = %v", s.SpanKind())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v", s.Status().Code)
	}
	if len(s.Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestStartCredentialSpan(t *testing.T) {
	rec := withSpanRecorder(t)

	ctx, span := StartCredentialSpan(context.Background(), "refresh")
	AddSpanEvent(ctx, "token.persisted")
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 || ended[0].Name() != "oauth.refresh" {
		t.Fatalf("unexpected spans: %v", ended)
	}
	if len(ended[0].Events()) != 1 {
		t.Errorf("expected one event, got %d", len(ended[0].Events()))
	}
}

func TestGetIDs_NoSpan(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("expected empty trace id, got %q", id)
	}
	if id := GetSpanID(context.Background()); id != "" {
		t.Errorf("expected empty span id, got %q", id)
	}
}
