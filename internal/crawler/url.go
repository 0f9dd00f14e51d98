package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ResolveReference turns href into an absolute URL relative to base and drops
// the fragment. It returns "" for empty, fragment-only and non-http links.
func ResolveReference(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil || !baseURL.IsAbs() {
			return ""
		}
		ref = baseURL.ResolveReference(ref)
	}
	ref.Fragment = ""
	ref.RawFragment = ""
	switch strings.ToLower(ref.Scheme) {
	case "http", "https":
		return ref.String()
	default:
		return ""
	}
}

// ListingPageURL builds the URL of page n (1-based) of a category listing.
// pathPattern holds one %s verb for the category key, e.g. "/tamil-movies/%s/".
func ListingPageURL(baseURL, pathPattern, key string, page int) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + fmt.Sprintf(pathPattern, key))
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	if page > 1 {
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
