package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Candidate is one search hit.
type Candidate struct {
	ID    string
	Title string
	Year  int
}

// Lookup searches for titles.
type Lookup interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Choose returns the first of the top candidates whose year matches, else the
// first candidate.
func Choose(candidates []Candidate, year string, top int) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	if want, err := strconv.Atoi(year); err == nil {
		for i, c := range candidates {
			if top > 0 && i >= top {
				break
			}
			if c.Year == want {
				return c, true
			}
		}
	}
	return candidates[0], true
}

// SuggestionLookup queries the IMDb suggestion JSON endpoint through a
// crawler.Fetcher, so it shares the crawl's transport and retry policy.
type SuggestionLookup struct {
	fetcher  crawler.Fetcher
	retry    crawler.RetryPolicy
	endpoint string
	pacer    crawler.Pacer
}

// NewSuggestionLookup builds a lookup. endpoint holds one %s verb for the
// escaped query. pacer may be nil.
func NewSuggestionLookup(fetcher crawler.Fetcher, retry crawler.RetryPolicy, endpoint string, pacer crawler.Pacer) *SuggestionLookup {
	return &SuggestionLookup{fetcher: fetcher, retry: retry, endpoint: endpoint, pacer: pacer}
}

type suggestionResponse struct {
	Results []struct {
		ID    string `json:"id"`
		Label string `json:"l"`
		Year  int    `json:"y"`
	} `json:"d"`
}

// Search returns title candidates in ranking order. Non-title hits such as
// people are dropped.
func (l *SuggestionLookup) Search(ctx context.Context, query string) ([]Candidate, error) {
	target := fmt.Sprintf(l.endpoint, url.PathEscape(strings.ToLower(strings.TrimSpace(query))))
	if l.pacer != nil {
		if err := l.pacer.Wait(ctx, target); err != nil {
			return nil, err
		}
	}
	doc, err := l.retry.Fetch(ctx, l.fetcher, target)
	if err != nil {
		return nil, err
	}
	var resp suggestionResponse
	if err := json.Unmarshal(doc.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode suggestions for %q: %w", query, err)
	}
	out := make([]Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		id := normalizeID(r.ID)
		if id == "" {
			continue
		}
		out = append(out, Candidate{ID: id, Title: r.Label, Year: r.Year})
	}
	return out, nil
}

// normalizeID returns a "tt"-prefixed title id, or "" for other id kinds.
func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	switch {
	case strings.HasPrefix(id, "tt"):
		return id
	case id != "" && strings.Trim(id, "0123456789") == "":
		return "tt" + id
	default:
		return ""
	}
}
