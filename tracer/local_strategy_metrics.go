package tracer

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/metric/instrument/syncint64"
)

const (
	meterName = "github.com/donetkit/contrib-sampling/tracer"

	matchedCounterName  = "sampling.requests.matched"
	sampledCounterName  = "sampling.requests.sampled"
	borrowedCounterName = "sampling.requests.borrowed"
)

// samplingMetrics mirrors the per-rule statistics as OpenTelemetry counters
// tagged with the rule name.
type samplingMetrics struct {
	matched  syncint64.Counter
	sampled  syncint64.Counter
	borrowed syncint64.Counter
}

func newSamplingMetrics(mp metric.MeterProvider) (*samplingMetrics, error) {
	counters := mp.Meter(meterName, metric.WithInstrumentationVersion(SemVersion())).SyncInt64()

	matched, err := counters.Counter(matchedCounterName,
		instrument.WithDescription("Requests matched by a sampling rule"))
	if err != nil {
		return nil, errors.Wrapf(err, "create counter %s", matchedCounterName)
	}
	sampled, err := counters.Counter(sampledCounterName,
		instrument.WithDescription("Requests sampled by a sampling rule"))
	if err != nil {
		return nil, errors.Wrapf(err, "create counter %s", sampledCounterName)
	}
	borrowed, err := counters.Counter(borrowedCounterName,
		instrument.WithDescription("Requests sampled through the rate after the fixed target was spent"))
	if err != nil {
		return nil, errors.Wrapf(err, "create counter %s", borrowedCounterName)
	}

	return &samplingMetrics{matched: matched, sampled: sampled, borrowed: borrowed}, nil
}

func (m *samplingMetrics) RecordDecision(rule string, sampled, borrowed bool) {
	ctx := context.Background()
	attrs := []attribute.KeyValue{RuleNameKey.String(rule)}

	m.matched.Add(ctx, 1, attrs...)
	if sampled {
		m.sampled.Add(ctx, 1, attrs...)
	}
	if borrowed {
		m.borrowed.Add(ctx, 1, attrs...)
	}
}
