// Package identity tracks which catalog items have already been admitted,
// keyed by canonical URL and by normalized title.
package identity

import "strings"

const unknownTitle = "Unknown"

// boilerplate is stripped in order; the longer phrase must go first so
// "tamil movie" does not leave a dangling "tamil".
var boilerplate = []string{"tamil movie", "movie"}

// NormalizeTitle lowercases, collapses whitespace and strips listing
// boilerplate. It returns "" for empty input and the Unknown sentinel.
// NormalizeTitle(NormalizeTitle(t)) == NormalizeTitle(t).
func NormalizeTitle(title string) string {
	if title == "" || title == unknownTitle {
		return ""
	}
	normalized := collapse(strings.ToLower(title))
	// Repeat until stable: removing "movie" can join fragments into a new match,
	// e.g. "tamil mmovieovie".
	for {
		stripped := normalized
		for _, phrase := range boilerplate {
			stripped = strings.ReplaceAll(stripped, phrase, "")
		}
		stripped = collapse(stripped)
		if stripped == normalized {
			return normalized
		}
		normalized = stripped
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
