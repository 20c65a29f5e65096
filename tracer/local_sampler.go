package tracer

import (
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
)

// RuleNameKey is set on sampled root spans to the name of the rule that sampled them.
const RuleNameKey = attribute.Key("sampling.rule")

// localSampler is an OpenTelemetry sampler backed by a LocalStrategy. Root
// spans are matched against the strategy's rules using their HTTP
// attributes; child spans follow the parent's decision.
type localSampler struct {
	strategy    *LocalStrategy
	serviceName string
}

// Compile time assertion that localSampler implements the Sampler interface.
var _ sdktrace.Sampler = (*localSampler)(nil)

// NewLocalSampler returns a sampler which decides to sample a given request or
// not based on the locally configured sampling rules.
func NewLocalSampler(serviceName string, opts ...LocalStrategyOption) (sdktrace.Sampler, error) {
	ls, err := NewLocalStrategy(opts...)
	if err != nil {
		return nil, err
	}
	return NewLocalSamplerFromStrategy(serviceName, ls), nil
}

// NewLocalSamplerFromStrategy wraps an existing strategy, e.g. to keep access
// to its statistics.
func NewLocalSamplerFromStrategy(serviceName string, ls *LocalStrategy) sdktrace.Sampler {
	return &localSampler{strategy: ls, serviceName: serviceName}
}

// ShouldSample matches span attributes with the sampling rules and returns a sampling result.
func (s *localSampler) ShouldSample(parameters sdktrace.SamplingParameters) sdktrace.SamplingResult {
	psc := trace.SpanContextFromContext(parameters.ParentContext)
	if psc.IsValid() {
		decision := sdktrace.Drop
		if psc.IsSampled() {
			decision = sdktrace.RecordAndSample
		}
		return sdktrace.SamplingResult{Decision: decision, Tracestate: psc.TraceState()}
	}

	host, urlPath, method := requestAttributes(parameters.Attributes)
	resp := s.strategy.ShouldTrace(host, s.serviceName, urlPath, method)
	if !resp.Sampled {
		return sdktrace.SamplingResult{Decision: sdktrace.Drop, Tracestate: psc.TraceState()}
	}
	return sdktrace.SamplingResult{
		Decision:   sdktrace.RecordAndSample,
		Attributes: []attribute.KeyValue{RuleNameKey.String(resp.RuleName)},
		Tracestate: psc.TraceState(),
	}
}

// Description returns description of the sampler being used.
func (s *localSampler) Description() string {
	return fmt.Sprintf("LocalSampler{service=%s,rules=%d}", s.serviceName, len(s.strategy.Rules()))
}

// requestAttributes extracts host, path and method from span start
// attributes. http.target wins over the path of http.url.
func requestAttributes(attrs []attribute.KeyValue) (host, urlPath, method string) {
	var rawURL string
	for _, kv := range attrs {
		switch kv.Key {
		case semconv.HTTPHostKey:
			host = kv.Value.AsString()
		case semconv.HTTPTargetKey:
			urlPath = kv.Value.AsString()
		case semconv.HTTPURLKey:
			rawURL = kv.Value.AsString()
		case semconv.HTTPMethodKey:
			method = kv.Value.AsString()
		}
	}

	if urlPath != "" {
		if u, err := url.ParseRequestURI(urlPath); err == nil {
			urlPath = u.Path
		}
	} else if rawURL != "" {
		if u, err := url.Parse(rawURL); err == nil {
			urlPath = u.Path
			if host == "" {
				host = u.Host
			}
		}
	}
	return host, urlPath, method
}
