package pipeline

import (
	"fmt"
	"regexp"
)

// placeholderRe matches {key} references in stage instructions.
var placeholderRe = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// renderTemplate substitutes {key} placeholders with blackboard values.
// An unresolved placeholder is an error: a stage must never run with a
// silently incomplete instruction.
func renderTemplate(tmpl string, board *Blackboard) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := board.Get(key); ok {
			return v
		}
		if missing == "" {
			missing = key
		}
		return match
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s", ErrMissingContext, missing)
	}
	return out, nil
}
