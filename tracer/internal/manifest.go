package internal

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	keyHost        = "host"
	keyServiceName = "service_name"
	keyHTTPMethod  = "http_method"
	keyURLPath     = "url_path"
	keyFixedTarget = "fixed_target"
	keyRate        = "rate"
)

const (
	defaultFixedTarget = 1
	defaultRate        = 0.05

	maxFixedTarget = math.MaxUint32
)

// matchKeys lists the match fields of a custom rule for each supported
// manifest version.
var matchKeys = map[int][]string{
	1: {keyServiceName, keyHTTPMethod, keyURLPath},
	2: {keyHost, keyHTTPMethod, keyURLPath},
}

// allMatchKeys is the union of match fields over every version.
var allMatchKeys = []string{keyHost, keyServiceName, keyHTTPMethod, keyURLPath}

// ErrInvalidManifest is wrapped by every ConfigurationError.
var ErrInvalidManifest = errors.New("invalid sampling manifest")

// ConfigurationError describes why a manifest was rejected. Index is the
// position of the offending record in the rules list, or -1 when the error
// concerns the manifest itself or its default record.
type ConfigurationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidManifest.Error())
	if e.Index >= 0 {
		fmt.Fprintf(&b, ": rule %d", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Unwrap lets errors.Is match ErrInvalidManifest.
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidManifest
}

func configErr(index int, field, format string, args ...interface{}) error {
	return &ConfigurationError{Index: index, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Record is one decoded rule entry: a flat set of key/value pairs.
type Record map[string]interface{}

// RawManifest is the decoded, not yet validated, rule set.
type RawManifest struct {
	Version int      `json:"version" yaml:"version"`
	Rules   []Record `json:"rules" yaml:"rules"`
	Default Record   `json:"default" yaml:"default"`
}

// Manifest represents a full, validated sampling rule set. Rules keep
// declaration order, which is also match priority.
type Manifest struct {
	Version int
	Rules   []*Rule
	Default *Rule
}

// DefaultManifest returns the built-in rule set: no custom rules and a default
// rule sampling one request per second plus 5% of the rest. Each call returns
// fresh reservoirs.
func DefaultManifest() *Manifest {
	return &Manifest{
		Version: 1,
		Rules:   []*Rule{},
		Default: newRule(defaultRule, DefaultRuleName, defaultFixedTarget, defaultRate),
	}
}

type candidate struct {
	index  int
	record Record
}

// NewManifest validates raw and compiles its patterns. Validation stops at the
// first violation and reports it as a *ConfigurationError.
func NewManifest(raw *RawManifest) (*Manifest, error) {
	if raw == nil {
		return nil, configErr(-1, "", "manifest is empty")
	}

	keys, ok := matchKeys[raw.Version]
	if !ok {
		return nil, configErr(-1, "version", "unsupported manifest version %d", raw.Version)
	}

	var defaults, customs []candidate
	if raw.Default != nil {
		defaults = append(defaults, candidate{index: -1, record: compact(raw.Default)})
	}
	for i, rec := range raw.Rules {
		rec = compact(rec)
		if hasAny(rec, allMatchKeys) {
			customs = append(customs, candidate{index: i, record: rec})
		} else {
			defaults = append(defaults, candidate{index: i, record: rec})
		}
	}

	if len(defaults) != 1 {
		return nil, configErr(-1, "", "manifest must contain exactly one default rule, found %d", len(defaults))
	}
	def := defaults[0]
	if err := checkFields(def, []string{keyFixedTarget, keyRate}); err != nil {
		return nil, err
	}

	required := append(append([]string{}, keys...), keyFixedTarget, keyRate)
	for _, c := range customs {
		if err := checkFields(c, required); err != nil {
			return nil, err
		}
	}

	m := &Manifest{Version: raw.Version, Rules: make([]*Rule, 0, len(customs))}

	fixedTarget, rate, err := budget(def)
	if err != nil {
		return nil, err
	}
	m.Default = newRule(defaultRule, DefaultRuleName, fixedTarget, rate)

	for n, c := range customs {
		fixedTarget, rate, err := budget(c)
		if err != nil {
			return nil, err
		}
		r := newRule(customRule, fmt.Sprintf("rule-%d", n+1), fixedTarget, rate)
		for _, k := range keys {
			glob, ok := c.record[k].(string)
			if !ok {
				return nil, configErr(c.index, k, "must be a string, got %T", c.record[k])
			}
			p, err := compilePattern(glob)
			if err != nil {
				return nil, configErr(c.index, k, "%v", err)
			}
			switch k {
			case keyHost:
				r.host = p
			case keyServiceName:
				r.serviceName = p
			case keyHTTPMethod:
				r.httpMethod = p
			case keyURLPath:
				r.urlPath = p
			}
		}
		m.Rules = append(m.Rules, r)
	}
	return m, nil
}

// Match returns the first custom rule that applies to the request, or the
// default rule when none does.
func (m *Manifest) Match(host, serviceName, urlPath, httpMethod string) *Rule {
	for _, r := range m.Rules {
		if r.AppliesTo(host, serviceName, urlPath, httpMethod) {
			return r
		}
	}
	return m.Default
}

// SetRecorder attaches rec to every rule. It must be called before the
// manifest is shared between goroutines.
func (m *Manifest) SetRecorder(rec Recorder) {
	for _, r := range m.Rules {
		r.recorder = rec
	}
	m.Default.recorder = rec
}

// Snapshots takes a snapshot of sampling statistics from all rules, resetting
// statistics counters in the process. The default rule is reported last.
func (m *Manifest) Snapshots(clientID string, now time.Time) []*SamplingStatisticsDocument {
	statistics := make([]*SamplingStatisticsDocument, 0, len(m.Rules)+1)
	for _, r := range m.Rules {
		statistics = append(statistics, r.snapshot(clientID, now))
	}
	return append(statistics, m.Default.snapshot(clientID, now))
}

// compact drops keys whose value is null, which count as unset.
func compact(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

func hasAny(rec Record, keys []string) bool {
	for _, k := range keys {
		if _, ok := rec[k]; ok {
			return true
		}
	}
	return false
}

// checkFields requires rec to hold exactly the keys in required.
func checkFields(c candidate, required []string) error {
	for _, k := range required {
		if _, ok := c.record[k]; !ok {
			return configErr(c.index, k, "missing required field")
		}
	}
	if len(c.record) == len(required) {
		return nil
	}

	extra := make([]string, 0, len(c.record))
	for k := range c.record {
		if !contains(required, k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return configErr(c.index, extra[0], "unexpected field")
}

func budget(c candidate) (uint64, float64, error) {
	target, ok := toFloat(c.record[keyFixedTarget])
	if !ok {
		return 0, 0, configErr(c.index, keyFixedTarget, "must be a number, got %T", c.record[keyFixedTarget])
	}
	if target < 0 || target != math.Trunc(target) || math.IsInf(target, 0) {
		return 0, 0, configErr(c.index, keyFixedTarget, "must be a non-negative integer, got %v", target)
	}
	if target > maxFixedTarget {
		return 0, 0, configErr(c.index, keyFixedTarget, "must not exceed %d, got %v", uint64(maxFixedTarget), target)
	}

	rate, ok := toFloat(c.record[keyRate])
	if !ok {
		return 0, 0, configErr(c.index, keyRate, "must be a number, got %T", c.record[keyRate])
	}
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return 0, 0, configErr(c.index, keyRate, "must be between 0 and 1, got %v", rate)
	}
	return uint64(target), rate, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
