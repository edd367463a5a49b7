// Package matcher compares observed step results and output against expected
// patterns.
//
// A pattern's kind is decided once from its literal shape:
//
//	/SW=0x[0-9A-F]{4}/   regex, searched anywhere in the observed value
//	SW=*                 wildcard, '*' matches any run of characters, anchored
//	0x9000               exact string equality
//
// Observed values are compared with leading and trailing whitespace removed
// unless the pattern itself begins or ends with whitespace.
package matcher

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Kind is the matching mode of a Pattern.
type Kind int

const (
	KindExact Kind = iota
	KindWildcard
	KindRegex
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindWildcard:
		return "wildcard"
	case KindRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// Pattern is a compiled expected value.
type Pattern struct {
	kind       Kind
	source     string
	re         *regexp.Regexp
	keepSpaces bool
}

// Compile classifies and compiles expected.
func Compile(expected string) (Pattern, error) {
	p := Pattern{source: expected}

	switch {
	case len(expected) >= 2 && strings.HasPrefix(expected, "/") && strings.HasSuffix(expected, "/"):
		body := expected[1 : len(expected)-1]
		re, err := regexp.Compile(body)
		if err != nil {
			return Pattern{}, fmt.Errorf("invalid regex pattern %s: %w", expected, err)
		}
		p.kind = KindRegex
		p.re = re
		p.keepSpaces = hasOuterSpace(body)

	case strings.Contains(expected, "*"):
		p.kind = KindWildcard
		p.re = regexp.MustCompile(wildcardToRegex(expected))
		p.keepSpaces = hasOuterSpace(expected)

	default:
		p.kind = KindExact
		p.keepSpaces = hasOuterSpace(expected)
	}

	return p, nil
}

// MustCompile is like Compile but panics on an invalid regex.
func MustCompile(expected string) Pattern {
	p, err := Compile(expected)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether observed satisfies the pattern.
func (p Pattern) Match(observed string) bool {
	if !p.keepSpaces {
		observed = strings.TrimSpace(observed)
	}

	switch p.kind {
	case KindRegex, KindWildcard:
		return p.re.MatchString(observed)
	default:
		return observed == p.source
	}
}

// Kind returns the matching mode.
func (p Pattern) Kind() Kind {
	return p.kind
}

// KeepsSpaces reports whether observed values are compared untrimmed.
func (p Pattern) KeepsSpaces() bool {
	return p.keepSpaces
}

// Regexp returns the compiled body of regex patterns, nil otherwise.
func (p Pattern) Regexp() *regexp.Regexp {
	if p.kind != KindRegex {
		return nil
	}
	return p.re
}

// String returns the pattern as written.
func (p Pattern) String() string {
	return p.source
}

// Match compiles expected and applies it to observed.
func Match(expected, observed string) (bool, error) {
	p, err := Compile(expected)
	if err != nil {
		return false, err
	}
	return p.Match(observed), nil
}

// wildcardToRegex escapes every literal run and turns '*' into '.*'. The
// result is anchored and lets '.' span newlines.
func wildcardToRegex(pattern string) string {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return "(?s)^" + strings.Join(parts, ".*") + "$"
}

func hasOuterSpace(s string) bool {
	if s == "" {
		return false
	}
	first := []rune(s)[0]
	last := []rune(s)[len([]rune(s))-1]
	return unicode.IsSpace(first) || unicode.IsSpace(last)
}
