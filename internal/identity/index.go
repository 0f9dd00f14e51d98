package identity

import "sync"

// Reason explains why an item was treated as a duplicate.
type Reason string

// Duplicate reasons.
const (
	ReasonNone  Reason = ""
	ReasonURL   Reason = "url"
	ReasonTitle Reason = "title"
)

// Index is a concurrency-safe set of seen URLs and normalized titles.
// It only grows during a run.
type Index struct {
	mu     sync.RWMutex
	urls   map[string]struct{}
	titles map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		urls:   make(map[string]struct{}),
		titles: make(map[string]struct{}),
	}
}

// IsDuplicate reports whether url, or the normalized form of title, was seen.
// Pass an empty title to check the URL only.
func (i *Index) IsDuplicate(url, title string) (bool, Reason) {
	key := NormalizeTitle(title)
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lookupLocked(url, key)
}

// MarkProcessed records url and, when it normalizes to something, title.
func (i *Index) MarkProcessed(url, title string) {
	key := NormalizeTitle(title)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.insertLocked(url, key)
}

// Claim atomically checks and marks. It returns true only for the first caller
// presenting a given URL or normalized title.
func (i *Index) Claim(url, title string) (bool, Reason) {
	key := NormalizeTitle(title)
	i.mu.Lock()
	defer i.mu.Unlock()
	if dup, reason := i.lookupLocked(url, key); dup {
		return false, reason
	}
	i.insertLocked(url, key)
	return true, ReasonNone
}

// Len returns the number of indexed URLs and titles.
func (i *Index) Len() (urls, titles int) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.urls), len(i.titles)
}

func (i *Index) lookupLocked(url, titleKey string) (bool, Reason) {
	if _, ok := i.urls[url]; ok {
		return true, ReasonURL
	}
	if titleKey != "" {
		if _, ok := i.titles[titleKey]; ok {
			return true, ReasonTitle
		}
	}
	return false, ReasonNone
}

func (i *Index) insertLocked(url, titleKey string) {
	if url != "" {
		i.urls[url] = struct{}{}
	}
	if titleKey != "" {
		i.titles[titleKey] = struct{}{}
	}
}
