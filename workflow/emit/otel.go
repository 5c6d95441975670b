package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a span with:
//   - Span name: event.Msg (e.g., "step", "suspended")
//   - Attributes: session id, step, node id, and all event.Meta fields
//   - Status: set to error if event.Meta["error"] exists
//
// Events represent points in time, so each span is ended immediately;
// when event.Meta carries "duration_ms" the value is recorded as an
// attribute rather than stretching the span.
//
// Usage:
//
//	tracer := otel.Tracer("foundry")
//	emitter := emit.NewOTelEmitter(tracer)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates a new OTelEmitter from a tracer obtained via
// otel.Tracer("service-name").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates an OpenTelemetry span for the event.
func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", event.SessionID),
		attribute.Int("step", event.Step),
		attribute.String("node_id", event.NodeID),
	)

	for key, value := range event.Meta {
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
		default:
			span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}
