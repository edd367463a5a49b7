package tags

import (
	"strings"

	"tcm/internal/testcase"
)

// Rule derives extra tags from a test case's structure. Rules are pure.
type Rule struct {
	Name  string
	Apply func(tc testcase.TestCase) []string
}

// DefaultRules are the built-in dynamic tag rules, applied in order.
var DefaultRules = []Rule{
	{
		Name: "automated-only",
		Apply: func(tc testcase.TestCase) []string {
			automated, manual := tc.StepCount()
			if manual == 0 && automated > 0 {
				return []string{"automated-only"}
			}
			return nil
		},
	},
	{
		Name: "has-manual-steps",
		Apply: func(tc testcase.TestCase) []string {
			if _, manual := tc.StepCount(); manual > 0 {
				return []string{"has-manual-steps"}
			}
			return nil
		},
	},
	{
		Name: "manual-only",
		Apply: func(tc testcase.TestCase) []string {
			automated, manual := tc.StepCount()
			if automated == 0 && manual > 0 {
				return []string{"manual-only"}
			}
			return nil
		},
	},
	{
		Name: "multi-sequence",
		Apply: func(tc testcase.TestCase) []string {
			if len(tc.Sequences) > 1 {
				return []string{"multi-sequence"}
			}
			return nil
		},
	},
	{
		Name: "captures-variables",
		Apply: func(tc testcase.TestCase) []string {
			if tc.HasCaptures() {
				return []string{"captures-variables"}
			}
			return nil
		},
	},
}

// EffectiveTags returns the declared and sequence tags of tc followed by the
// output of each rule, without duplicates.
func EffectiveTags(tc testcase.TestCase, rules []Rule) []string {
	result := tc.EffectiveTags()
	seen := toSet(result)
	for _, rule := range rules {
		for _, tag := range rule.Apply(tc) {
			if !seen[tag] {
				seen[tag] = true
				result = append(result, tag)
			}
		}
	}
	return result
}

// Filter selects test cases by include list, exclude list and expression.
type Filter struct {
	Include    []string
	Exclude    []string
	Expression Expression
	Rules      []Rule
}

// Match reports whether tc is selected: it carries at least one include tag
// (when any are given), no exclude tag, and satisfies the expression.
func (f Filter) Match(tc testcase.TestCase) bool {
	set := toSet(EffectiveTags(tc, f.Rules))

	if len(f.Include) > 0 {
		found := false
		for _, tag := range f.Include {
			if set[tag] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, tag := range f.Exclude {
		if set[tag] {
			return false
		}
	}

	if f.Expression != nil && !f.Expression.Evaluate(set) {
		return false
	}
	return true
}

// Apply returns the test cases matched by the filter, preserving order.
func (f Filter) Apply(testCases []testcase.TestCase) []testcase.TestCase {
	if f.IsEmpty() {
		return testCases
	}
	var selected []testcase.TestCase
	for _, tc := range testCases {
		if f.Match(tc) {
			selected = append(selected, tc)
		}
	}
	return selected
}

// IsEmpty reports whether the filter selects everything.
func (f Filter) IsEmpty() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0 && f.Expression == nil
}

// SplitList splits a comma-separated tag list, dropping blanks.
func SplitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
