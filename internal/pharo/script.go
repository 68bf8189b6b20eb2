// Package pharo generates Pharo Smalltalk expressions for the remote image.
package pharo

import (
	"strings"
)

// lineSeparator rebuilds newlines on the Pharo side: evaluating
// 'a', Character cr asString, 'b' concatenates the lines with a carriage
// return between them.
const lineSeparator = ", Character cr asString, "

// CompileScript builds a single-line Pharo expression that compiles code
// into className. Each source line becomes a quoted string literal with
// embedded quotes doubled (Smalltalk's only string escape), so the result
// never contains a raw newline and is safe for a line-oriented channel.
//
// Empty code returns the empty string as a no-op signal to the caller.
func CompileScript(className, code string) string {
	if code == "" {
		return ""
	}

	lines := splitLines(code)
	quoted := make([]string, len(lines))
	for i, line := range lines {
		quoted[i] = "'" + strings.ReplaceAll(line, "'", "''") + "'"
	}

	return className + " compile: (" + strings.Join(quoted, lineSeparator) + ")"
}

// splitLines splits on line terminators (\n, \r\n, \r). A trailing
// terminator does not produce a final empty line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			lines = append(lines, s[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
