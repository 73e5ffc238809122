// Package eventbus publishes and receives automaton reload
// notifications over NATS, propagating W3C trace context the same
// way natsctx does for the rest of the platform.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ReloadEvent announces that a watcher compiled a new automaton.
type ReloadEvent struct {
	Source       string `json:"source"`
	Version      string `json:"version"`
	PatternCount int    `json:"pattern_count"`
}

var propagator = propagation.TraceContext{}

// Publish sends a reload event on subject, injecting the current
// span's trace context into the message headers.
func Publish(ctx context.Context, nc *nats.Conn, subject string, event ReloadEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event: %w", err)
	}

	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	msg := &nats.Msg{Subject: subject, Data: body, Header: hdr}
	return nc.PublishMsg(msg)
}

// Subscribe registers handler for subject, extracting the sender's
// trace context (if present) and starting a child span around each
// delivery before invoking handler.
func Subscribe(nc *nats.Conn, subject string, handler func(context.Context, ReloadEvent)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		carrier := propagation.HeaderCarrier(msg.Header)
		ctx := propagator.Extract(context.Background(), carrier)

		tr := otel.Tracer("acdat-eventbus")
		ctx, span := tr.Start(ctx, "eventbus.receive", trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		var event ReloadEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			span.RecordError(err)
			return
		}
		handler(ctx, event)
	})
}
