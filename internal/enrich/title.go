// Package enrich attaches IMDb identifiers to stored records.
package enrich

import (
	"regexp"
	"strings"
)

var (
	yearPattern      = regexp.MustCompile(`\((\d{4})\)`)
	qualifierPattern = regexp.MustCompile(`(?i)\b(Tamil|Hindi|Telugu|Malayalam|Kannada|English)\s+(Movie|Film)\b`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// ExtractTitleAndYear splits a catalog title such as "Aruvi (2017) Tamil Movie"
// into a search title ("Aruvi") and a year ("2017"). year is "" when absent.
func ExtractTitleAndYear(raw string) (title, year string) {
	if m := yearPattern.FindStringSubmatch(raw); m != nil {
		year = m[1]
	}
	title = yearPattern.ReplaceAllString(raw, "")
	title = qualifierPattern.ReplaceAllString(title, "")
	title = strings.TrimSpace(spacePattern.ReplaceAllString(title, " "))
	return title, year
}
