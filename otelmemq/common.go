package otelmemq

import (
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahmedboeni/memq"
)

// ScopeName is the instrumentation scope name.
const (
	ScopeName = "github.com/ahmedboeni/memq/otelmemq"
	Version   = "0.1.0"
)

func newTracer(tp trace.TracerProvider) trace.Tracer {
	return tp.Tracer(ScopeName, trace.WithInstrumentationVersion(Version))
}

func commonAttributes(channel string, msg *memq.Message) []attribute.KeyValue {
	attr := []attribute.KeyValue{
		semconv.MessagingDestinationName(channel),
		semconv.MessagingMessagePayloadSizeBytes(len(msg.Body)),
	}
	if msg.ID != "" {
		attr = append(attr, semconv.MessagingMessageID(msg.ID))
	}

	if correlationID := msg.Header.GetCorrelationID(); correlationID != "" {
		attr = append(attr, semconv.MessagingMessageConversationID(correlationID))
	}

	return attr
}
