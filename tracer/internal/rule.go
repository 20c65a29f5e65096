package internal

import (
	"sync/atomic"
	"time"
)

// DefaultRuleName names the fallback rule in decisions and statistics.
const DefaultRuleName = "default"

type ruleKind int

const (
	customRule ruleKind = iota
	defaultRule
)

// Rule represents a sampling rule which contains its match patterns, its
// sampling budget and the reservoir which keeps track of the per-second quota.
type Rule struct {
	kind ruleKind
	name string

	// Match patterns. A nil pattern matches any value.
	host        *pattern
	serviceName *pattern
	httpMethod  *pattern
	urlPath     *pattern

	// FixedTarget is the number of requests sampled unconditionally per second.
	FixedTarget uint64

	// Rate is the probability of sampling a request once the fixed target is spent.
	Rate float64

	reservoir *reservoir

	samplingStatistics *samplingStatistics

	recorder Recorder
}

// Recorder is told about every decision a rule makes, in addition to the
// rule's own snapshot counters.
type Recorder interface {
	RecordDecision(rule string, sampled, borrowed bool)
}

type samplingStatistics struct {
	// matchedRequests is the number of requests matched against specific rule.
	matchedRequests int64

	// sampledRequests is the number of requests sampled using specific rule.
	sampledRequests int64

	// borrowedRequests is the number of requests sampled through the rate
	// after the reservoir was exhausted.
	borrowedRequests int64
}

func newRule(kind ruleKind, name string, fixedTarget uint64, rate float64) *Rule {
	return &Rule{
		kind:               kind,
		name:               name,
		FixedTarget:        fixedTarget,
		Rate:               rate,
		reservoir:          newReservoir(fixedTarget),
		samplingStatistics: &samplingStatistics{},
	}
}

// Name returns the rule name.
func (r *Rule) Name() string {
	return r.name
}

// IsDefault reports whether r is the manifest's fallback rule.
func (r *Rule) IsDefault() bool {
	return r.kind == defaultRule
}

// Host returns the host glob, or "" when the field is absent.
func (r *Rule) Host() string { return r.host.String() }

// ServiceName returns the service name glob, or "" when the field is absent.
func (r *Rule) ServiceName() string { return r.serviceName.String() }

// HTTPMethod returns the HTTP method glob, or "" when the field is absent.
func (r *Rule) HTTPMethod() string { return r.httpMethod.String() }

// URLPath returns the URL path glob, or "" when the field is absent.
func (r *Rule) URLPath() string { return r.urlPath.String() }

// AppliesTo reports whether every set pattern of the rule matches the
// corresponding request attribute.
func (r *Rule) AppliesTo(host, serviceName, urlPath, httpMethod string) bool {
	return r.host.match(host) &&
		r.serviceName.match(serviceName) &&
		r.urlPath.match(urlPath) &&
		r.httpMethod.match(httpMethod)
}

// Sample returns true when the rule's reservoir still has quota for the
// second of now, or when rnd draws a value below the rule's rate.
func (r *Rule) Sample(now time.Time, rnd func() float64) bool {
	atomic.AddInt64(&r.samplingStatistics.matchedRequests, 1)

	if r.reservoir.take(now.Unix()) {
		atomic.AddInt64(&r.samplingStatistics.sampledRequests, 1)
		r.record(true, false)
		return true
	}

	if r.Rate > 0 && rnd() < r.Rate {
		atomic.AddInt64(&r.samplingStatistics.sampledRequests, 1)
		atomic.AddInt64(&r.samplingStatistics.borrowedRequests, 1)
		r.record(true, true)
		return true
	}
	r.record(false, false)
	return false
}

func (r *Rule) record(sampled, borrowed bool) {
	if r.recorder != nil {
		r.recorder.RecordDecision(r.name, sampled, borrowed)
	}
}

// snapshot reads and resets the rule's counters.
func (r *Rule) snapshot(clientID string, now time.Time) *SamplingStatisticsDocument {
	return &SamplingStatisticsDocument{
		ClientID:     clientID,
		RuleName:     r.name,
		RequestCount: atomic.SwapInt64(&r.samplingStatistics.matchedRequests, 0),
		SampledCount: atomic.SwapInt64(&r.samplingStatistics.sampledRequests, 0),
		BorrowCount:  atomic.SwapInt64(&r.samplingStatistics.borrowedRequests, 0),
		Timestamp:    now.Unix(),
	}
}

// SamplingStatisticsDocument is the per-rule request accounting since the
// previous snapshot.
type SamplingStatisticsDocument struct {
	ClientID     string `json:"ClientID"`
	RuleName     string `json:"RuleName"`
	RequestCount int64  `json:"RequestCount"`
	SampledCount int64  `json:"SampledCount"`
	BorrowCount  int64  `json:"BorrowCount"`
	Timestamp    int64  `json:"Timestamp"`
}
