package goSession

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/provider/providertest"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedController(t *testing.T, stub *providertest.Stub, sink AuditSink) (*Controller, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg := DefaultConfig()
	if sink != nil {
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
	}

	c, err := New().
		WithConfig(cfg).
		WithProvider(stub).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithAuditSink(sink).
		WithTracerProvider(tp).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c, rec
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestProviderCallsAreTraced(t *testing.T) {
	stub := providertest.New()
	c, rec := newTracedController(t, stub, nil)
	ctx := context.Background()

	if err := c.SignIn(ctx, "a@b.com", "pw1"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := c.RefreshFromProvider(ctx); err != nil {
		t.Fatalf("RefreshFromProvider failed: %v", err)
	}
	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	spans := rec.Ended()
	want := []string{"session.sign_in", "session.refresh", "session.sign_out"}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %d", len(want), len(spans))
	}
	for i, s := range spans {
		if s.Name() != want[i] {
			t.Fatalf("span %d: expected %s, got %s", i, want[i], s.Name())
		}
		if v, ok := spanAttr(s, "session.provider"); !ok || v.AsString() != "stub" {
			t.Fatalf("span %s missing provider attribute", s.Name())
		}
		if v, ok := spanAttr(s, "session.generation"); !ok || v.AsInt64() != int64(i+1) {
			t.Fatalf("span %s: expected generation %d, got %v", s.Name(), i+1, v.Emit())
		}
	}
	if v, _ := spanAttr(spans[0], "session.signed_in"); !v.AsBool() {
		t.Fatal("expected sign-in span to record signed_in=true")
	}
}

func TestFailedCallSpanHasErrorStatus(t *testing.T) {
	stub := providertest.New().FailSignIn(provider.NewError(provider.KindInvalidCredentials, "", nil))
	c, rec := newTracedController(t, stub, nil)

	_ = c.SignIn(context.Background(), "a@b.com", "bad")

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	st := spans[0].Status()
	if st.Code != codes.Error || st.Description != ErrorInvalidCredentials.String() {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestValidationFailureIsNotTraced(t *testing.T) {
	c, rec := newTracedController(t, providertest.New(), nil)

	_ = c.SignIn(context.Background(), "", "pw1")
	// A following call proves the reject op has been processed.
	if err := c.RefreshFromProvider(context.Background()); err != nil {
		t.Fatalf("RefreshFromProvider failed: %v", err)
	}

	for _, s := range rec.Ended() {
		if s.Name() == "session.sign_in" {
			t.Fatal("rejected credentials must not produce a provider span")
		}
	}
}

func TestSwallowedSignOutFailureRecordedOnSpan(t *testing.T) {
	stub := providertest.New().FailSignOut(provider.NewError(provider.KindNetwork, "", nil))
	c, rec := newTracedController(t, stub, nil)

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code == codes.Error {
		t.Fatal("swallowed sign-out failure must not mark the span failed")
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("expected the provider failure recorded as a span event")
	}
}

func TestAuditCarriesTraceIDs(t *testing.T) {
	sink := newCaptureSink(4)
	c, rec := newTracedController(t, providertest.New(), sink)

	if err := c.SignIn(context.Background(), "a@b.com", "pw1"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	ev := sink.next(t)
	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	sc := spans[0].SpanContext()
	if ev.Metadata["trace_id"] != sc.TraceID().String() || ev.Metadata["span_id"] != sc.SpanID().String() {
		t.Fatalf("audit metadata %v does not match span %s/%s", ev.Metadata, sc.TraceID(), sc.SpanID())
	}
}
