package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
)

func newTestSampler(t *testing.T) sdktrace.Sampler {
	t.Helper()
	sampler, err := NewLocalSampler("checkout",
		WithManifest(&RawManifest{
			Version: 1,
			Rules: []Record{
				{"service_name": "checkout", "http_method": "POST", "url_path": "/orders*", "fixed_target": 0, "rate": 1},
			},
			Default: Record{"fixed_target": 0, "rate": 0},
		}),
		WithClock(fixedClock()),
	)
	require.NoError(t, err)
	return sampler
}

func TestLocalSamplerDecisions(t *testing.T) {
	sampler := newTestSampler(t)

	tests := []struct {
		name  string
		attrs []attribute.KeyValue
		want  sdktrace.SamplingDecision
	}{
		{
			name: "target matches rule",
			attrs: []attribute.KeyValue{
				semconv.HTTPMethodKey.String("POST"),
				semconv.HTTPTargetKey.String("/orders/42?expand=items"),
			},
			want: sdktrace.RecordAndSample,
		},
		{
			name: "url matches rule",
			attrs: []attribute.KeyValue{
				semconv.HTTPMethodKey.String("post"),
				semconv.HTTPURLKey.String("https://shop.example.com/orders"),
			},
			want: sdktrace.RecordAndSample,
		},
		{
			name: "method does not match",
			attrs: []attribute.KeyValue{
				semconv.HTTPMethodKey.String("GET"),
				semconv.HTTPTargetKey.String("/orders"),
			},
			want: sdktrace.Drop,
		},
		{
			name: "no http attributes",
			want: sdktrace.Drop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := sampler.ShouldSample(sdktrace.SamplingParameters{
				ParentContext: context.Background(),
				Name:          "span",
				Attributes:    tt.attrs,
			})
			assert.Equal(t, tt.want, res.Decision)
			if tt.want == sdktrace.RecordAndSample {
				assert.Contains(t, res.Attributes, RuleNameKey.String("rule-1"))
			}
		})
	}
}

func TestLocalSamplerFollowsParent(t *testing.T) {
	sampler := newTestSampler(t)

	for _, flags := range []trace.TraceFlags{0, trace.FlagsSampled} {
		psc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    trace.TraceID{0x01},
			SpanID:     trace.SpanID{0x02},
			TraceFlags: flags,
			Remote:     true,
		})
		res := sampler.ShouldSample(sdktrace.SamplingParameters{
			ParentContext: trace.ContextWithRemoteSpanContext(context.Background(), psc),
			Attributes:    []attribute.KeyValue{semconv.HTTPMethodKey.String("GET")},
		})

		want := sdktrace.Drop
		if flags.IsSampled() {
			want = sdktrace.RecordAndSample
		}
		assert.Equal(t, want, res.Decision)
	}
}

func TestLocalSamplerDescription(t *testing.T) {
	assert.Equal(t, "LocalSampler{service=checkout,rules=2}", newTestSampler(t).Description())
}

func TestRequestAttributes(t *testing.T) {
	host, path, method := requestAttributes([]attribute.KeyValue{
		semconv.HTTPURLKey.String("http://api.local:8080/v1/items?x=1"),
		semconv.HTTPMethodKey.String("DELETE"),
	})
	assert.Equal(t, "api.local:8080", host)
	assert.Equal(t, "/v1/items", path)
	assert.Equal(t, "DELETE", method)

	host, path, _ = requestAttributes([]attribute.KeyValue{
		semconv.HTTPHostKey.String("h"),
		semconv.HTTPTargetKey.String("/a/b?c=d"),
		semconv.HTTPURLKey.String("http://other/z"),
	})
	assert.Equal(t, "h", host)
	assert.Equal(t, "/a/b", path)
}
