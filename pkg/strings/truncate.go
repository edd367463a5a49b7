package strings

import (
	"fmt"
	"strings"
)

// DefaultLineMaxLen is the maximum length of a single-line rendering of
// command output in console and table views.
const DefaultLineMaxLen = 60

// DefaultDetailMaxLines is the number of trailing output lines shown under a
// failed step.
const DefaultDetailMaxLines = 10

// MinTruncateLen is the minimum maxLen value for TruncateLine.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// TruncateLine collapses s to a single line and shortens it to maxLen runes,
// adding "..." if truncated.
//
// If maxLen is less than MinTruncateLen (4), it is clamped to MinTruncateLen.
func TruncateLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// TailLines keeps the last maxLines lines of s. When lines were dropped the
// result starts with a marker line stating how many.
func TailLines(s string, maxLines int) string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" || maxLines <= 0 {
		return s
	}

	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}

	dropped := len(lines) - maxLines
	kept := append([]string{fmt.Sprintf("... (%d earlier lines omitted)", dropped)}, lines[dropped:]...)
	return strings.Join(kept, "\n")
}

// Indent prefixes every line of s with prefix. Empty input stays empty.
func Indent(s, prefix string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
