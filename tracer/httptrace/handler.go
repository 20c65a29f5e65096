// Package httptrace starts a server span for every inbound HTTP request so
// the configured sampler can decide from the request's host, path and method.
package httptrace

import (
	"fmt"
	"net/http"

	"github.com/donetkit/contrib-sampling/tracer"
	"github.com/felixge/httpsnoop"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
)

type handler struct {
	next      http.Handler
	server    *tracer.Server
	operation string
}

// BaggageKeyPrefix prefixes the span attributes copied from request baggage.
const BaggageKeyPrefix = "baggage."

// NewHandler wraps next so that every request runs inside a server span named
// operation. The span start attributes carry http.host, http.target and
// http.method, which is what the local sampler matches on. Baggage members
// propagated with the request are copied onto sampled spans.
func NewHandler(next http.Handler, server *tracer.Server, operation string) http.Handler {
	return &handler{next: next, server: server, operation: operation}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := h.server.Propagators.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	ctx, span := h.server.Tracer.Start(ctx, h.operation,
		trace.WithSpanKind(trace.SpanKindServer),
		h.server.WithAttributes(
			semconv.HTTPHostKey.String(r.Host),
			semconv.HTTPTargetKey.String(r.URL.RequestURI()),
			semconv.HTTPMethodKey.String(r.Method),
		),
	)
	defer span.End()

	if span.IsRecording() {
		for _, m := range h.server.FromContext(ctx).Members() {
			span.SetAttributes(attribute.String(BaggageKeyPrefix+m.Key(), m.Value()))
		}
	}

	metrics := httpsnoop.CaptureMetrics(h.next, w, r.WithContext(ctx))

	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		semconv.HTTPStatusCodeKey.Int(metrics.Code),
		semconv.HTTPResponseContentLengthKey.Int64(metrics.Written),
	)
	if metrics.Code >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP status code %d", metrics.Code))
	}
}
