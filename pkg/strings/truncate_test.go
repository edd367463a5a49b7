package strings

import (
	"testing"
)

func TestTruncateLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "short string unchanged",
			input:    "hello",
			maxLen:   10,
			expected: "hello",
		},
		{
			name:     "exact length unchanged",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "long string truncated",
			input:    "hello world this is a long string",
			maxLen:   15,
			expected: "hello world ...",
		},
		{
			name:     "newlines replaced with spaces",
			input:    "SW=0x9000\nOK",
			maxLen:   20,
			expected: "SW=0x9000 OK",
		},
		{
			name:     "carriage returns handled",
			input:    "hello\r\nworld",
			maxLen:   20,
			expected: "hello world",
		},
		{
			name:     "unicode truncated on rune boundary",
			input:    "äöüäöüäöü",
			maxLen:   6,
			expected: "äöü...",
		},
		{
			name:     "maxLen clamped to minimum",
			input:    "abcdefgh",
			maxLen:   1,
			expected: "a...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateLine(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("TruncateLine(%q, %d) = %q, expected %q", tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestTailLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLines int
		expected string
	}{
		{
			name:     "fewer lines than limit",
			input:    "a\nb\n",
			maxLines: 5,
			expected: "a\nb",
		},
		{
			name:     "keeps trailing lines",
			input:    "1\n2\n3\n4",
			maxLines: 2,
			expected: "... (2 earlier lines omitted)\n3\n4",
		},
		{
			name:     "empty input",
			input:    "",
			maxLines: 3,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TailLines(tt.input, tt.maxLines)
			if result != tt.expected {
				t.Errorf("TailLines(%q, %d) = %q, expected %q", tt.input, tt.maxLines, result, tt.expected)
			}
		})
	}
}

func TestIndent(t *testing.T) {
	if got := Indent("a\nb", "  "); got != "  a\n  b" {
		t.Errorf("Indent() = %q", got)
	}
	if got := Indent("", "  "); got != "" {
		t.Errorf("Indent(\"\") = %q, expected empty", got)
	}
}
