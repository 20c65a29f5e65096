package tracer

import (
	"context"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-sampling/tracer/internal"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Manifest types re-exported for callers outside this module.
type (
	RawManifest                = internal.RawManifest
	Record                     = internal.Record
	Format                     = internal.Format
	ConfigurationError         = internal.ConfigurationError
	SamplingStatisticsDocument = internal.SamplingStatisticsDocument
	Clock                      = internal.Clock
	MockClock                  = internal.MockClock
	Rule                       = internal.Rule
)

const (
	FormatJSON = internal.FormatJSON
	FormatYAML = internal.FormatYAML

	// DefaultRuleName is reported in SamplingResponse.RuleName when no custom rule matched.
	DefaultRuleName = internal.DefaultRuleName
)

var (
	// ErrInvalidManifest is matched by every manifest validation failure.
	ErrInvalidManifest = internal.ErrInvalidManifest

	// ErrSourceUnavailable is matched when a manifest file or URL cannot be read.
	ErrSourceUnavailable = internal.ErrSourceUnavailable
)

// SamplingResponse is the outcome of a single sampling decision.
type SamplingResponse struct {
	Sampled  bool
	RuleName string
}

// LocalStrategy makes trace sampling decisions based on a set of rules
// loaded once at construction. The rule set never changes afterwards; only
// the per-rule reservoirs are mutated, each under its own lock.
type LocalStrategy struct {
	manifest *internal.Manifest

	// fallback is true when the configured source could not be read and the
	// built-in rules are in use.
	fallback bool

	clientID string
	clock    internal.Clock
	randFunc func() float64

	logger glog.ILoggerEntry
}

// NewLocalStrategy returns a strategy for the configured manifest source. With
// no source it uses the built-in rules: one request per second plus 5% of the
// rest. An unreadable source also falls back to the built-in rules and logs a
// warning, while an invalid manifest is returned as an error.
func NewLocalStrategy(opts ...LocalStrategyOption) (*LocalStrategy, error) {
	cfg := newConfig(opts...)

	ls := &LocalStrategy{
		clientID: uuid.NewString(),
		clock:    cfg.clock,
		randFunc: cfg.randFunc,
		logger:   cfg.logger.WithField("LocalStrategy", "LocalStrategy"),
	}

	raw, err := cfg.load()
	switch {
	case errors.Is(err, internal.ErrSourceUnavailable):
		ls.logger.Warnf("falling back to default sampling rules: %v", err)
		ls.fallback = true
		ls.manifest = internal.DefaultManifest()
	case err != nil:
		return nil, err
	case raw == nil:
		ls.manifest = internal.DefaultManifest()
	default:
		m, err := internal.NewManifest(raw)
		if err != nil {
			return nil, err
		}
		ls.manifest = m
		ls.logger.Debugf("loaded %d sampling rules (manifest version %d)", len(m.Rules), m.Version)
	}

	if cfg.meterProvider != nil {
		metrics, err := newSamplingMetrics(cfg.meterProvider)
		if err != nil {
			return nil, err
		}
		ls.manifest.SetRecorder(metrics)
	}
	return ls, nil
}

// load returns the decoded manifest for the configured source, or nil for the
// built-in rules.
func (cfg *config) load() (*internal.RawManifest, error) {
	switch cfg.source {
	case sourceRaw:
		if cfg.raw == nil {
			return nil, nil
		}
		return cfg.raw, nil
	case sourceBytes:
		return internal.DecodeManifest(cfg.data, cfg.format)
	case sourcePath:
		return internal.ReadManifestFile(cfg.location)
	case sourceURL:
		return internal.FetchManifest(context.Background(), cfg.httpClient, cfg.location)
	}
	return nil, nil
}

// ShouldTrace consults the rule set to determine if the given request should
// be traced. It never fails: the default rule applies when no custom rule does.
func (ls *LocalStrategy) ShouldTrace(host, serviceName, urlPath, httpMethod string) *SamplingResponse {
	r := ls.manifest.Match(host, serviceName, urlPath, httpMethod)
	return &SamplingResponse{
		Sampled:  r.Sample(ls.clock.Now(), ls.randFunc),
		RuleName: r.Name(),
	}
}

// UsingFallback reports whether the built-in rules replaced an unreadable source.
func (ls *LocalStrategy) UsingFallback() bool {
	return ls.fallback
}

// ClientID identifies this strategy instance in statistics documents.
func (ls *LocalStrategy) ClientID() string {
	return ls.clientID
}

// Rules returns the custom rules in match order followed by the default rule.
func (ls *LocalStrategy) Rules() []*Rule {
	rules := make([]*Rule, 0, len(ls.manifest.Rules)+1)
	rules = append(rules, ls.manifest.Rules...)
	return append(rules, ls.manifest.Default)
}

// Snapshots returns the per-rule request counts since the previous call and
// resets them.
func (ls *LocalStrategy) Snapshots() []*SamplingStatisticsDocument {
	return ls.manifest.Snapshots(ls.clientID, ls.clock.Now())
}

// NewMockClock returns a manually advanced clock starting at t.
func NewMockClock(t time.Time) *MockClock {
	return internal.NewMockClock(t)
}
