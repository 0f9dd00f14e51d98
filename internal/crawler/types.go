package crawler

import (
	"encoding/json"
	"sort"
	"time"
)

// UnknownTitle is stored when an item page could not be fetched or carried no title.
const UnknownTitle = "Unknown"

// ItemRecord is the persisted unit of the record store.
type ItemRecord struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	DownloadLinks []string `json:"download_links"`
	IMDbID        string   `json:"imdb_id,omitempty"`
}

// UnmarshalJSON accepts both the download_links and resourceLinks spellings.
func (r *ItemRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL           string   `json:"url"`
		Title         string   `json:"title"`
		DownloadLinks []string `json:"download_links"`
		ResourceLinks []string `json:"resourceLinks"`
		IMDbID        string   `json:"imdb_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	links := raw.DownloadLinks
	if links == nil {
		links = raw.ResourceLinks
	}
	*r = ItemRecord{
		URL:           raw.URL,
		Title:         raw.Title,
		DownloadLinks: links,
		IMDbID:        raw.IMDbID,
	}
	return nil
}

// HasTitle reports whether the record carries a real title.
func (r ItemRecord) HasTitle() bool {
	return r.Title != "" && r.Title != UnknownTitle
}

// linkSet accumulates resource links with set semantics.
type linkSet map[string]struct{}

func (s linkSet) add(link string) {
	if link != "" {
		s[link] = struct{}{}
	}
}

// sorted returns the members in a stable order so repeated flushes diff cleanly.
func (s linkSet) sorted() []string {
	out := make([]string, 0, len(s))
	for link := range s {
		out = append(out, link)
	}
	sort.Strings(out)
	return out
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Timeout time.Duration
}

// Document is a successfully fetched page.
type Document struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// ParsedPage is what a PageParser extracts from a Document. All links are absolute.
type ParsedPage struct {
	Title         string
	EntryLinks    []string
	ListingLinks  []string
	ResourceLinks []string
}

// Summary reports the outcome of one orchestrated crawl.
type Summary struct {
	RunID    string
	Loaded   int
	Admitted int
	Skipped  int
	Total    int
	Duration time.Duration
}

// Rate returns admitted records per second.
func (s Summary) Rate() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Admitted) / s.Duration.Seconds()
}
