package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Kind(t *testing.T) {
	tests := []struct {
		expected string
		kind     Kind
	}{
		{"0x9000", KindExact},
		{"SW=*", KindWildcard},
		{"/SW=0x[0-9A-F]{4}/", KindRegex},
		{"/", KindExact},
		{"//", KindRegex},
		{"/usr/bin/*", KindWildcard},
		{"", KindExact},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			p, err := Compile(tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Kind())
			assert.Equal(t, tt.expected, p.String())
		})
	}
}

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		observed string
		want     bool
	}{
		// exact
		{"exact equal", "0x9000", "0x9000", true},
		{"exact differs", "0x9000", "0x6A82", false},
		{"exact trims observed", "0x9000", "  0x9000\n", true},
		{"exact is case sensitive", "0x9000", "0X9000", false},
		{"exact substring is not enough", "0x9000", "SW=0x9000", false},

		// wildcard
		{"wildcard prefix", "SW=*", "SW=0x9000", true},
		{"wildcard empty tail", "SW=*", "SW=", true},
		{"wildcard anchored", "SW=*", "XSW=0x9000", false},
		{"wildcard middle", "SW=*00", "SW=0x9000", true},
		{"wildcard escapes meta", "a.b*", "axb-c", false},
		{"wildcard literal dot", "a.b*", "a.b-c", true},
		{"wildcard spans lines", "start*end", "start\nmiddle\nend", true},
		{"wildcard trims observed", "SW=*", "SW=0x9000\n", true},

		// regex
		{"regex matches", "/SW=0x[0-9A-F]{4}/", "SW=0x9000", true},
		{"regex lower case hex fails", "/SW=0x[0-9A-F]{4}/", "SW=0xzzzz", false},
		{"regex searches", "/0x9000/", "response SW=0x9000 OK", true},
		{"regex anchored by user", "/^0x9000$/", "SW=0x9000", false},
		{"regex anchored trims observed", "/^0x9000$/", "0x9000\n", true},

		// whitespace spelled out by the pattern
		{"leading space kept", " 0x9000", " 0x9000", true},
		{"leading space required", " 0x9000", "0x9000", false},
		{"trailing space wildcard", "SW=* ", "SW=1 ", true},
		{"trailing space wildcard missing", "SW=* ", "SW=1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Match(tt.observed))
		})
	}
}

func TestCompile_InvalidRegex(t *testing.T) {
	_, err := Compile("/SW=(/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regex pattern")

	_, err = Match("/[/", "x")
	assert.Error(t, err)

	assert.Panics(t, func() { MustCompile("/(/") })
}

func TestMatch(t *testing.T) {
	ok, err := Match("SW=*", "SW=0x9000")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "exact", KindExact.String())
	assert.Equal(t, "wildcard", KindWildcard.String())
	assert.Equal(t, "regex", KindRegex.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestPattern_Accessors(t *testing.T) {
	assert.True(t, MustCompile(" x").KeepsSpaces())
	assert.False(t, MustCompile("x").KeepsSpaces())
	assert.NotNil(t, MustCompile("/x/").Regexp())
	assert.Nil(t, MustCompile("x*").Regexp())
}
