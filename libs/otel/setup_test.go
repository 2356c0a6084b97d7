package otelx

import (
	"context"
	"testing"
)

func TestConfigFromEnvDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_ENABLED", "")
	cfg := ConfigFromEnv("rental-service")
	if cfg.Enabled {
		t.Fatal("expected tracing disabled when no endpoint is configured")
	}
	if cfg.ServiceName != "rental-service" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
}

func TestConfigFromEnvSampling(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	cfg := ConfigFromEnv("svc")
	if !cfg.Enabled || cfg.OTLPEndpoint != "collector:4317" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.SampleRatio != 0.25 {
		t.Fatalf("expected ratio 0.25, got %v", cfg.SampleRatio)
	}
}

func TestConfigFromEnvRejectsBadRatio(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "3")
	cfg := ConfigFromEnv("svc")
	if cfg.Enabled {
		t.Fatal("expected OTEL_ENABLED=false to win over the endpoint")
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("expected fallback ratio 1, got %v", cfg.SampleRatio)
	}
}

func TestCaptureWithoutSpan(t *testing.T) {
	if _, err := Setup(context.Background(), Config{}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	carrier := CaptureTraceContext(context.Background())
	if carrier.Traceparent != "" || carrier.Tracestate != "" {
		t.Fatalf("expected empty trace context, got %+v", carrier)
	}
	ctx := context.Background()
	if got := carrier.Restore(ctx); got != ctx {
		t.Fatal("expected Restore to return the same context for an empty carrier")
	}
}
