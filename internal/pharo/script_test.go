package pharo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeScript re-joins the quoted literals and un-doubles quotes,
// recovering the original line sequence from a compile expression.
func decodeScript(t *testing.T, className, script string) []string {
	t.Helper()

	prefix := className + " compile: ("
	require.True(t, strings.HasPrefix(script, prefix), "script %q missing prefix", script)
	require.True(t, strings.HasSuffix(script, ")"))

	body := script[len(prefix) : len(script)-1]
	parts := strings.Split(body, ", Character cr asString, ")
	lines := make([]string, len(parts))
	for i, p := range parts {
		require.True(t, strings.HasPrefix(p, "'") && strings.HasSuffix(p, "'"), "part %q not quoted", p)
		lines[i] = strings.ReplaceAll(p[1:len(p)-1], "''", "'")
	}
	return lines
}

func TestCompileScriptEmptyCode(t *testing.T) {
	assert.Equal(t, "", CompileScript("Calculator", ""))
}

func TestCompileScriptSingleLine(t *testing.T) {
	script := CompileScript("Calculator", "sum: a with: b\t^ a + b")
	assert.Equal(t, "Calculator compile: ('sum: a with: b\t^ a + b')", script)
}

func TestCompileScriptMultiLine(t *testing.T) {
	code := "sum: a with: b\n\t\"Answer the sum\"\n\t^ a + b"
	script := CompileScript("Calculator", code)

	assert.Equal(t,
		"Calculator compile: ('sum: a with: b', Character cr asString, "+
			"'\t\"Answer the sum\"', Character cr asString, '\t^ a + b')",
		script)
	assert.NotContains(t, script, "\n", "script must stay single-line")
}

func TestCompileScriptDoublesQuotes(t *testing.T) {
	script := CompileScript("Logger", "log\n\tTranscript show: 'it''s fine'")
	assert.Contains(t, script, "'\tTranscript show: ''it''''s fine'''")
}

func TestCompileScriptQuoteOnlyLine(t *testing.T) {
	script := CompileScript("Edge", "'")
	assert.Equal(t, "Edge compile: ('''')", script)
	assert.Equal(t, []string{"'"}, decodeScript(t, "Edge", script))
}

func TestCompileScriptRoundTrip(t *testing.T) {
	cases := []string{
		"a\nb\nc",
		"method\n\t^ 'quoted ''string'' here'",
		"one line",
		"trailing newline\n",
		"\nleading empty",
		"crlf\r\nline",
		"blank\n\nmiddle",
		"tabs\t\tand  spaces",
	}

	for _, code := range cases {
		script := CompileScript("Target", code)
		got := decodeScript(t, "Target", script)
		assert.Equal(t, splitLines(code), got, "round trip for %q", code)
		assert.False(t, strings.ContainsAny(script, "\r\n"), "single-line guarantee for %q", code)
	}
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb"))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\r\nb"))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\rb"))
	assert.Equal(t, []string{"a"}, splitLines("a\n"))
	assert.Equal(t, []string{"a", "", "b"}, splitLines("a\n\nb"))
	assert.Nil(t, splitLines(""))
}
