package tracer

import (
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

// NewResource describes the traced service. tags are opaque enrichment
// values, typically from plugins.HostMetadata, attached as string attributes.
func NewResource(service, environment string, tags map[string]string) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(service),
		semconv.DeploymentEnvironmentKey.String(environment),
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, tags[k]))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// NewTracerProvider returns a provider exporting to a jaeger agent and
// sampling with sampler, which is usually a NewLocalSampler.
func NewTracerProvider(service, agentHost, environment string, agentPort int, sampler sdktrace.Sampler, tags map[string]string) (*sdktrace.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithAgentEndpoint(
		jaeger.WithAgentHost(agentHost),
		jaeger.WithAgentPort(fmt.Sprintf("%d", agentPort)),
	))
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(NewResource(service, environment, tags)),
	), nil
}
