package tracer

import (
	"net/http"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-sampling/tracer/internal"
	"go.opentelemetry.io/otel/metric"
)

type sourceKind int

const (
	sourceBuiltin sourceKind = iota
	sourceRaw
	sourceBytes
	sourcePath
	sourceURL
)

type config struct {
	source     sourceKind
	raw        *internal.RawManifest
	data       []byte
	format     internal.Format
	location   string
	httpClient *http.Client
	logger     glog.ILogger
	clock      internal.Clock
	randFunc   func() float64

	meterProvider metric.MeterProvider
}

// LocalStrategyOption sets configuration on the local sampling strategy.
type LocalStrategyOption interface {
	apply(*config) *config
}

type optionLocalStrategyFunc func(*config) *config

func (f optionLocalStrategyFunc) apply(cfg *config) *config {
	return f(cfg)
}

// WithManifest uses an already decoded rule set.
func WithManifest(raw *internal.RawManifest) LocalStrategyOption {
	return optionLocalStrategyFunc(func(cfg *config) *config {
		cfg.source = sourceRaw
		cfg.raw = raw
		return cfg
	})
}

// WithManifestBytes decodes the rule set from data, JSON unless format says otherwise.
func WithManifestBytes(data []byte, format internal.Format) LocalStrategyOption {
	return optionLocalStrategyFunc(func(cfg *config) *config {
		cfg.source = sourceBytes
		cfg.data = data
		cfg.format = format
		return cfg
	})
}

// WithManifestPath reads the rule set from a JSON or YAML file.
// If the file cannot be read the built-in rules are used.
func WithManifestPath(path string) LocalStrategyOption {
	return optionLocalStrategyFunc(func(cfg *config) *config {
		cfg.source = sourcePath
		cfg.location = path
		return cfg
	})
}

// WithManifestURL fetches the rule set over HTTP once at construction.
// If the document cannot be fetched the built-in rules are used.
func WithManifestURL(rawURL string) LocalStrategyOption {
	return optionLocalStrategyFunc(func(cfg *config) *config {
		cfg.source = sourceURL
		cfg.location = rawURL
		return cfg
	})
}

// WithHTTPClient sets the client used by WithManifestURL.
func WithHTTPClient(client *http.Client) LocalStrategyOption {
	return optionLocalStrategyFunc(func(cfg *config) *config {
		cfg.httpClient = client
		return cfg
	})
}

// WithLogger sets custom logging for the local sampling implementation.
// If this option is not provided glog.New() is used.
func WithLogger(l glog.ILogger) LocalStrategyOption {
	return optionLocalStrategyFunc(func(cfg *config) *config {
		cfg.logger = l
		return cfg
	})
}

// WithClock sets the clock reservoir windows are computed from.
func WithClock(c internal.Clock) LocalStrategyOption {
	return optionLocalStrategyFunc(func(cfg *config) *config {
		cfg.clock = c
		return cfg
	})
}

// WithRandFunc sets the source of [0,1) values used for rate sampling.
// The function must be safe for concurrent use.
func WithRandFunc(f func() float64) LocalStrategyOption {
	return optionLocalStrategyFunc(func(cfg *config) *config {
		cfg.randFunc = f
		return cfg
	})
}

// WithMeterProvider also reports matched, sampled and borrowed request counts
// per rule as OpenTelemetry counters. Without it no metrics are recorded.
func WithMeterProvider(mp metric.MeterProvider) LocalStrategyOption {
	return optionLocalStrategyFunc(func(cfg *config) *config {
		cfg.meterProvider = mp
		return cfg
	})
}

func newConfig(opts ...LocalStrategyOption) *config {
	cfg := &config{
		source: sourceBuiltin,
		format: internal.FormatJSON,
		clock:  internal.DefaultClock{},
	}

	for _, option := range opts {
		option.apply(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = glog.New()
	}
	if cfg.randFunc == nil {
		cfg.randFunc = newLockedRand().Float64
	}
	return cfg
}
