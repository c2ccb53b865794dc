package eligibility

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// UnknownCandidateError reports a season, weather, location, rarity tier or
// candidate name that is not defined. It is a caller bug and never retried.
type UnknownCandidateError struct {
	Kind       string
	Value      string
	Suggestion string
}

func (e *UnknownCandidateError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown %s %q (did you mean %q?)", e.Kind, e.Value, e.Suggestion)
	}
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Value)
}

func unknown(kind, value string, known []string) *UnknownCandidateError {
	return &UnknownCandidateError{Kind: kind, Value: value, Suggestion: suggest(value, known)}
}

// suggest returns the closest known name within an edit budget that grows
// with the name length, or "" when nothing is close enough.
func suggest(value string, known []string) string {
	needle := strings.ToLower(strings.TrimSpace(value))
	if len(needle) < 3 {
		return ""
	}

	best := ""
	bestDist := -1
	for _, name := range known {
		dist := levenshtein.ComputeDistance(needle, strings.ToLower(name))
		if dist > levenshteinLimit(len(name)) {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best = name
			bestDist = dist
		}
	}
	return best
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
