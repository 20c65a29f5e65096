package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"

	otelBaggage "go.opentelemetry.io/otel/baggage"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const version = "0.1.0"

// SemVersion is the semantic version to be supplied to tracer/meter creation.
func SemVersion() string {
	return "semver:" + version
}

// Server bundles the tracer used by instrumentation with its provider and propagators.
type Server struct {
	tracerName     string
	TracerProvider otelTrace.TracerProvider
	Tracer         otelTrace.Tracer
	Propagators    propagation.TextMapPropagator
}

// New returns *tracer.Server
func New(opts ...Option) *Server {
	cfg := &Server{
		tracerName: "Service",
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	cfg.Tracer = cfg.TracerProvider.Tracer(
		cfg.tracerName,
		otelTrace.WithInstrumentationVersion(SemVersion()),
	)
	if cfg.Propagators == nil {
		cfg.Propagators = otel.GetTextMapPropagator()
	}
	return cfg
}

// Stop flushes and shuts down the provider when it is an SDK provider.
func (s *Server) Stop(ctx context.Context) error {
	tp, ok := s.TracerProvider.(*trace.TracerProvider)
	if ok {
		return tp.Shutdown(ctx)
	}
	return nil
}

// SpanFromContext returns the span started by instrumentation for the request
// carried by ctx, or a non-recording span when there is none.
func (s *Server) SpanFromContext(ctx context.Context) otelTrace.Span {
	return otelTrace.SpanFromContext(ctx)
}

// FromContext returns the baggage propagated with the request carried by ctx.
func (s *Server) FromContext(ctx context.Context) otelBaggage.Baggage {
	return otelBaggage.FromContext(ctx)
}

// WithAttributes returns a span start option carrying attributes. Attributes
// given at start are visible to the sampler.
func (s *Server) WithAttributes(attributes ...attribute.KeyValue) otelTrace.SpanStartEventOption {
	return otelTrace.WithAttributes(attributes...)
}
