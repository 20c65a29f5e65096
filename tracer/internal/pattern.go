package internal

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// pattern is a compiled glob where '*' matches any run of characters
// (including none) and '?' matches exactly one. Matching is case-insensitive
// and anchored at both ends.
type pattern struct {
	raw      string
	matchAll bool
	re       *regexp.Regexp
}

func compilePattern(glob string) (*pattern, error) {
	p := &pattern{raw: glob}
	if strings.Trim(glob, "*") == "" && glob != "" {
		p.matchAll = true
		return p, nil
	}

	expr := regexp.QuoteMeta(glob)
	expr = strings.ReplaceAll(expr, `\?`, ".")
	expr = strings.ReplaceAll(expr, `\*`, ".*")

	re, err := regexp.Compile("(?is)^" + expr + "$")
	if err != nil {
		return nil, errors.Wrapf(err, "compile pattern %q", glob)
	}
	p.re = re
	return p, nil
}

// match reports whether value matches the pattern. A nil pattern is an absent
// field and matches every value.
func (p *pattern) match(value string) bool {
	if p == nil || p.matchAll {
		return true
	}
	return p.re.MatchString(value)
}

func (p *pattern) String() string {
	if p == nil {
		return ""
	}
	return p.raw
}
