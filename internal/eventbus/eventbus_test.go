package eventbus

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTripsThroughNatsHeader(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatalf("TraceIDFromHex: %v", err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatalf("SpanIDFromHex: %v", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	if hdr.Get("traceparent") == "" {
		t.Fatalf("expected Inject to populate a traceparent header")
	}

	extracted := propagator.Extract(context.Background(), propagation.HeaderCarrier(hdr))
	got := trace.SpanContextFromContext(extracted)
	if got.TraceID() != sc.TraceID() || got.SpanID() != sc.SpanID() {
		t.Fatalf("extracted span context %+v, want %+v", got, sc)
	}
}

func TestReloadEventFields(t *testing.T) {
	e := ReloadEvent{Source: "acdatctl", Version: "abc123", PatternCount: 5}
	if e.Source != "acdatctl" || e.Version != "abc123" || e.PatternCount != 5 {
		t.Fatalf("unexpected ReloadEvent: %+v", e)
	}
}
