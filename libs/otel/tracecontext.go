package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceCarrier is the serialised W3C trace context stored next to outbox rows
// so publishing can continue the trace of the request that wrote them.
type TraceCarrier struct {
	Traceparent string
	Tracestate  string
}

func CaptureTraceContext(ctx context.Context) TraceCarrier {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceCarrier{Traceparent: carrier["traceparent"], Tracestate: carrier["tracestate"]}
}

func (c TraceCarrier) Restore(ctx context.Context) context.Context {
	if c.Traceparent == "" && c.Tracestate == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{
		"traceparent": c.Traceparent,
		"tracestate":  c.Tracestate,
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer("github.com/md-rashed-zaman/billboardrent/" + name)
}
