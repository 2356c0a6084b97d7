package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if ReadyCheck("") != nil {
		t.Fatal("expected nil ready check without brokers")
	}
}

func TestEventMetaHeadersRoundTrip(t *testing.T) {
	meta := EventMeta{EventID: "evt-1", EventType: "rental.created.v1", TenantID: "tenant-a"}
	msg := kafka.Message{Topic: "rental.created.v1", Headers: meta.Headers()}
	if got := ExtractEventMeta(msg); got != meta {
		t.Fatalf("expected %+v, got %+v", meta, got)
	}

	fallback := ExtractEventMeta(kafka.Message{Topic: "proposal.deleted.v1", Key: []byte("p-1")})
	if fallback.EventID != "p-1" || fallback.EventType != "proposal.deleted.v1" {
		t.Fatalf("unexpected fallback meta %+v", fallback)
	}
}

func TestInjectTraceHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: HeaderEventID, Value: []byte("evt-1")}})
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("expected traceparent header, got %v", headers)
	}

	extracted := ExtractTraceContext(context.Background(), kafka.Message{Headers: headers})
	if got := trace.SpanContextFromContext(extracted).TraceID(); got != traceID {
		t.Fatalf("expected trace %s, got %s", traceID, got)
	}
}
