// Package otelmemq provides OpenTelemetry tracing middleware for the memq
// broker: one span per publish and per consume, with trace context carried
// across the queue in message headers.
package otelmemq

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahmedboeni/memq"
)

// PublisherMiddleware creates a middleware for memq.Publisher that integrates tracing.
func PublisherMiddleware(option ...Option) memq.PublisherMiddleware {
	opts := defaultOptions()
	opts.spanNameFormatter = spanNameFormatter("publish")
	opts.apply(option)
	return func(next memq.Publisher) memq.Publisher {
		return memq.PublisherFunc(func(channel string, msg *memq.Message) (string, error) {
			tracer := opts.tracer
			if tracer == nil {
				if span := trace.SpanFromContext(msg.Context()); span.SpanContext().IsValid() {
					tracer = newTracer(span.TracerProvider())
				} else {
					tracer = newTracer(otel.GetTracerProvider())
				}
			}

			kind := trace.WithSpanKind(trace.SpanKindProducer)
			attrs := append(commonAttributes(channel, msg), semconv.MessagingOperationPublish)
			sopts := append(
				[]trace.SpanStartOption{kind, trace.WithAttributes(attrs...)},
				opts.spanStartOptions...,
			)

			ctx, span := tracer.Start(msg.Context(), opts.spanNameFormatter(channel, msg), sopts...)
			defer span.End()

			if msg.Header == nil {
				msg.Header = make(memq.Header)
			}
			opts.propagator.Inject(ctx, propagation.MapCarrier(msg.Header))
			id, err := next.Publish(channel, msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}

			return id, err
		})
	}
}

// ConsumerMiddleware creates a middleware for memq.Handler that integrates tracing.
func ConsumerMiddleware(option ...Option) memq.Middleware {
	opts := defaultOptions()
	opts.spanNameFormatter = spanNameFormatter("receive")
	opts.apply(option)
	return func(next memq.Handler) memq.Handler {
		return func(event memq.Event) error {
			msg := event.Message()
			channel := event.Channel()

			tracer := opts.tracer
			if tracer == nil {
				if span := trace.SpanFromContext(msg.Context()); span.SpanContext().IsValid() {
					tracer = newTracer(span.TracerProvider())
				} else {
					tracer = newTracer(otel.GetTracerProvider())
				}
			}
			if msg.Header == nil {
				msg.Header = make(memq.Header)
			}
			ctx := opts.propagator.Extract(msg.Context(), propagation.MapCarrier(msg.Header))

			kind := trace.WithSpanKind(trace.SpanKindConsumer)
			attrs := append(commonAttributes(channel, msg), semconv.MessagingOperationReceive)
			sopts := append(
				[]trace.SpanStartOption{kind, trace.WithAttributes(attrs...)},
				opts.spanStartOptions...,
			)

			ctx, span := tracer.Start(ctx, opts.spanNameFormatter(channel, msg), sopts...)
			defer span.End()

			msg.SetContext(ctx)

			err := next(event)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}

			return err
		}
	}
}

// Option is a functional option type for configuring the middleware
type Option func(opts *options)

// WithPropagator returns an Option that sets a custom propagator
// for text map propagation of trace context.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(opts *options) {
		opts.propagator = p
	}
}

// WithTracer returns an Option that sets a custom tracer
// for the trace context.
func WithTracer(t trace.Tracer) Option {
	return func(opts *options) {
		opts.tracer = t
	}
}

// WithSpanStartOptions returns an Option that sets custom
// SpanStartOptions for starting new spans.
func WithSpanStartOptions(startOpts ...trace.SpanStartOption) Option {
	return func(opts *options) {
		opts.spanStartOptions = startOpts
	}
}

// WithSpanNameFormatter returns an Option that sets a custom
// span name formatter.
func WithSpanNameFormatter(f func(channel string, msg *memq.Message) string) Option {
	return func(opts *options) {
		opts.spanNameFormatter = f
	}
}

type options struct {
	propagator        propagation.TextMapPropagator
	tracer            trace.Tracer
	spanStartOptions  []trace.SpanStartOption
	spanNameFormatter func(channel string, msg *memq.Message) string
}

func defaultOptions() *options {
	return &options{
		propagator: otel.GetTextMapPropagator(),
	}
}

func (o *options) apply(opts []Option) {
	for _, opt := range opts {
		opt(o)
	}
}

func spanNameFormatter(operation string) func(channel string, msg *memq.Message) string {
	return func(channel string, _ *memq.Message) string {
		return channel + " " + operation
	}
}
