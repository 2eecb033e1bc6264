package instrumentation

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "test-service", Enabled: false})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil even when disabled")
	}
	if provider.ServesPrometheus() {
		t.Error("disabled provider should not serve prometheus")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}
}

func TestNewProvider_PrometheusExporter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if !provider.Enabled() {
		t.Error("expected provider to be enabled")
	}
	if !provider.ServesPrometheus() {
		t.Error("expected ServesPrometheus for prometheus exporter")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected tracer to be non-nil")
	}
}

func TestNewProvider_StdoutExporterWritesToConfiguredWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var buf bytes.Buffer
	provider, err := NewProvider(ctx, Config{
		ServiceName:       "test-service",
		Enabled:           true,
		MetricsExporter:   ExporterStdout,
		TracingExporter:   ExporterStdout,
		TraceSamplingRate: 1,
	}, WithExportWriter(&buf))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if provider.ServesPrometheus() {
		t.Error("stdout exporter should not serve prometheus")
	}

	_, span := StartToolSpan(ctx, "list_drive_files")
	span.End()

	if err := provider.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("tool.list_drive_files")) {
		t.Errorf("expected span export in writer, got %q", buf.String())
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"invalid metrics exporter", Config{Enabled: true, MetricsExporter: "invalid", TracingExporter: ExporterNone}},
		{"invalid tracing exporter", Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: "invalid"}},
		{"otlp tracing without endpoint", Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(context.Background(), tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}
