package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcm/internal/tcerr"
)

func TestParse_SmokeOrRegressionNotSlow(t *testing.T) {
	expr, err := Parse("(smoke || regression) && !slow")
	require.NoError(t, err)

	tests := []struct {
		tags []string
		want bool
	}{
		{[]string{"smoke"}, true},
		{[]string{"regression"}, true},
		{[]string{"smoke", "slow"}, false},
		{[]string{"slow"}, false},
		{[]string{}, false},
		{[]string{"smoke", "regression"}, true},
		{[]string{"nightly"}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(expr, tt.tags), "tags %v", tt.tags)
	}
}

func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		input     string
		canonical string
		tags      []string
		want      bool
	}{
		{"a || b && c", "a || b && c", []string{"a"}, true},
		{"a || b && c", "a || b && c", []string{"b"}, false},
		{"a && b || c", "a && b || c", []string{"c"}, true},
		{"!a && b", "!a && b", []string{"b"}, true},
		{"!a && b", "!a && b", []string{"a", "b"}, false},
		{"!(a || b)", "!(a || b)", []string{}, true},
		{"!!a", "!!a", []string{"a"}, true},
		{"(a || b) && c", "(a || b) && c", []string{"a", "c"}, true},
		{"smoke AND NOT slow", "smoke && !slow", []string{"smoke"}, true},
		{"smoke and not slow or nightly", "smoke && !slow || nightly", []string{"nightly", "slow"}, true},
		{"priority:high && team/apdu", "priority:high && team/apdu", []string{"priority:high", "team/apdu"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.canonical, expr.String())
			assert.Equal(t, tt.want, Matches(expr, tt.tags))
		})
	}
}

func TestParse_Empty(t *testing.T) {
	expr, err := Parse("   ")
	require.NoError(t, err)
	assert.Nil(t, expr)
	assert.True(t, Matches(expr, nil))
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		input    string
		position int
	}{
		{"(smoke", 6},
		{"smoke)", 5},
		{"smoke &&", 8},
		{"&& smoke", 0},
		{"()", 1},
		{"smoke & slow", 6},
		{"smoke | slow", 6},
		{"smoke slow", 6},
		{"!", 1},
		{"(a || b", 7},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, tcerr.Is(err, tcerr.CodeTagExpressionSyntax))

			var te *tcerr.Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.position, te.Position)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("(") })
	assert.NotPanics(t, func() { MustParse("a") })
}
