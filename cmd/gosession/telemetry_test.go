package main

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSetupTracingDisabledWithoutEndpoint(t *testing.T) {
	tp, shutdown, err := setupTracing(context.Background(), TelemetryConfig{})
	if err != nil {
		t.Fatalf("setupTracing failed: %v", err)
	}
	if _, ok := tp.(noop.TracerProvider); !ok {
		t.Fatalf("expected no-op provider, got %T", tp)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestSetupTracingWithEndpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tp, shutdown, err := setupTracing(context.Background(), TelemetryConfig{
		Endpoint:    "http://127.0.0.1:4318/v1/traces",
		ServiceName: "gosession-test",
	})
	if err != nil {
		t.Fatalf("setupTracing failed: %v", err)
	}
	if _, ok := tp.(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected sdk provider, got %T", tp)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// Nothing was recorded, so shutdown has nothing to export.
	_ = shutdown(ctx)
}
