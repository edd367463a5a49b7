package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tcm/internal/testcase"
)

func newCase(id string, tags []string, steps ...testcase.Step) testcase.TestCase {
	return testcase.TestCase{
		ID:   id,
		Tags: tags,
		Sequences: []testcase.TestSequence{
			{ID: 1, Steps: steps},
		},
	}
}

func auto(n int) testcase.Step {
	return testcase.Step{Step: n, Command: "true"}
}

func manual(n int) testcase.Step {
	return testcase.Step{Step: n, Manual: true}
}

func TestEffectiveTags_DynamicRules(t *testing.T) {
	tests := []struct {
		name string
		tc   testcase.TestCase
		want []string
	}{
		{
			name: "automated only",
			tc:   newCase("TC1", []string{"smoke"}, auto(1), auto(2)),
			want: []string{"smoke", "automated-only"},
		},
		{
			name: "mixed",
			tc:   newCase("TC2", nil, auto(1), manual(2)),
			want: []string{"has-manual-steps"},
		},
		{
			name: "manual only",
			tc:   newCase("TC3", []string{"manual-only"}, manual(1)),
			want: []string{"manual-only", "has-manual-steps"},
		},
		{
			name: "captures and sequences",
			tc: testcase.TestCase{
				ID: "TC4",
				Sequences: []testcase.TestSequence{
					{ID: 1, Tags: []string{"apdu"}, Steps: []testcase.Step{{Step: 1, Command: "echo", CaptureVars: []testcase.CaptureVar{{Name: "X", Command: "echo 1"}}}}},
					{ID: 2, Steps: []testcase.Step{auto(1)}},
				},
			},
			want: []string{"apdu", "automated-only", "multi-sequence", "captures-variables"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveTags(tt.tc, DefaultRules))
		})
	}
}

func TestEffectiveTags_NoRules(t *testing.T) {
	tc := newCase("TC1", []string{"smoke"}, manual(1))
	assert.Equal(t, []string{"smoke"}, EffectiveTags(tc, nil))
}

func TestFilter_Match(t *testing.T) {
	smoke := newCase("TC1", []string{"smoke"}, auto(1))
	slowSmoke := newCase("TC2", []string{"smoke", "slow"}, auto(1))
	regression := newCase("TC3", []string{"regression"}, auto(1), manual(2))
	untagged := newCase("TC4", nil, auto(1))

	all := []testcase.TestCase{smoke, slowSmoke, regression, untagged}

	ids := func(list []testcase.TestCase) []string {
		var out []string
		for _, tc := range list {
			out = append(out, tc.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter selects all", Filter{}, []string{"TC1", "TC2", "TC3", "TC4"}},
		{"include", Filter{Include: []string{"smoke"}}, []string{"TC1", "TC2"}},
		{"include any of", Filter{Include: []string{"smoke", "regression"}}, []string{"TC1", "TC2", "TC3"}},
		{"exclude", Filter{Exclude: []string{"slow"}}, []string{"TC1", "TC3", "TC4"}},
		{"include and exclude", Filter{Include: []string{"smoke"}, Exclude: []string{"slow"}}, []string{"TC1"}},
		{"expression", Filter{Expression: MustParse("(smoke || regression) && !slow")}, []string{"TC1", "TC3"}},
		{"dynamic tags", Filter{Expression: MustParse("automated-only"), Rules: DefaultRules}, []string{"TC1", "TC2", "TC4"}},
		{"dynamic tags disabled", Filter{Expression: MustParse("automated-only")}, nil},
		{"all three", Filter{Include: []string{"smoke", "regression"}, Exclude: []string{"slow"}, Expression: MustParse("has-manual-steps"), Rules: DefaultRules}, []string{"TC3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(all)))
		})
	}
}

func TestFilter_IsEmpty(t *testing.T) {
	assert.True(t, Filter{}.IsEmpty())
	assert.True(t, Filter{Rules: DefaultRules}.IsEmpty())
	assert.False(t, Filter{Exclude: []string{"slow"}}.IsEmpty())

	all := []testcase.TestCase{{ID: "TC1"}, {ID: "TC2", Tags: []string{"slow"}}}
	assert.Equal(t, all, Filter{}.Apply(all))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"smoke", "regression"}, SplitList(" smoke, ,regression,"))
	assert.Nil(t, SplitList(""))
}
