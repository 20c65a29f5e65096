package httptrace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/donetkit/contrib-sampling/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

func newTestServer(t *testing.T) (*tracer.Server, *tracetest.SpanRecorder) {
	t.Helper()
	return newTestServerWithPropagators(t, propagation.TraceContext{})
}

func newTestServerWithPropagators(t *testing.T, propagators propagation.TextMapPropagator) (*tracer.Server, *tracetest.SpanRecorder) {
	t.Helper()
	sampler, err := tracer.NewLocalSampler("api",
		tracer.WithManifest(&tracer.RawManifest{
			Version: 1,
			Rules: []tracer.Record{
				{"service_name": "api", "http_method": "GET", "url_path": "/api/*", "fixed_target": 1, "rate": 0},
			},
			Default: tracer.Record{"fixed_target": 0, "rate": 0},
		}),
		tracer.WithClock(tracer.NewMockClock(time.Unix(1000, 0))),
	)
	require.NoError(t, err)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sampler), sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return tracer.New(tracer.WithName("httptrace-test"), tracer.WithProvider(tp), tracer.WithPropagators(propagators)), sr
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestHandlerSamplesByRule(t *testing.T) {
	server, sr := newTestServer(t)

	h := NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}), server, "inbound")

	for _, target := range []string{"/api/users?id=1", "/api/users", "/health"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "inbound", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "/api/users?id=1", attrs[semconv.HTTPTargetKey].AsString())
	assert.Equal(t, int64(http.StatusOK), attrs[semconv.HTTPStatusCodeKey].AsInt64())
	assert.Equal(t, int64(2), attrs[semconv.HTTPResponseContentLengthKey].AsInt64())
	assert.Equal(t, "rule-1", attrs[tracer.RuleNameKey].AsString())
}

func TestHandlerPassesThroughUnsampledRequests(t *testing.T) {
	server, sr := newTestServer(t)

	called := 0
	h := NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusNoContent)
	}), server, "inbound")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users", nil))

	assert.Equal(t, 1, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, sr.Ended())
}

func TestHandlerExposesSpanAndBaggage(t *testing.T) {
	server, sr := newTestServerWithPropagators(t,
		propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	var sampled []bool
	h := NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sampled = append(sampled, server.SpanFromContext(r.Context()).SpanContext().IsSampled())
		assert.Equal(t, "eu-1", server.FromContext(r.Context()).Member("region").Value())
		w.WriteHeader(http.StatusOK)
	}), server, "inbound")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("baggage", "region=eu-1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, []bool{true, false}, sampled)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "eu-1", attrMap(spans[0].Attributes())[BaggageKeyPrefix+"region"].AsString())
}
