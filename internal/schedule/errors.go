package schedule

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// UnknownEventError is returned when a trigger names an event the merchant
// does not define.
type UnknownEventError struct {
	Event      string
	Known      []string
	Suggestion string
}

func (e *UnknownEventError) Error() string {
	msg := fmt.Sprintf("unknown event %q; use one of: %s", e.Event, strings.Join(e.Known, ", "))
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// ConflictError means two steps of one event resolved opposite states for
// the same category.
type ConflictError struct {
	Event    string
	Category Category
	First    string
	Second   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("event %q: category %q gets conflicting states from %q and %q",
		e.Event, e.Category.Name, e.First, e.Second)
}

// closest returns the known name within a small edit distance of name.
func closest(name string, known []string) string {
	best, bestDist := "", -1
	for _, k := range known {
		d := levenshtein.ComputeDistance(strings.ToLower(name), k)
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	if bestDist < 0 || bestDist > len(name)/2 {
		return ""
	}
	return best
}
