package crawler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// fakeSite serves canned pages to both the Fetcher and PageParser seams.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]ParsedPage
	failing map[string]int // remaining failures per URL; -1 fails forever
	calls   map[string]int
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:   make(map[string]ParsedPage),
		failing: make(map[string]int),
		calls:   make(map[string]int),
	}
}

func (s *fakeSite) add(url string, page ParsedPage) *fakeSite {
	if page.Title == "" {
		page.Title = UnknownTitle
	}
	s.pages[url] = page
	return s
}

func (s *fakeSite) Fetch(_ context.Context, request FetchRequest) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[request.URL]++
	if n := s.failing[request.URL]; n != 0 {
		if n > 0 {
			s.failing[request.URL] = n - 1
		}
		return Document{}, &StatusError{URL: request.URL, StatusCode: http.StatusServiceUnavailable}
	}
	if _, ok := s.pages[request.URL]; !ok {
		return Document{}, &StatusError{URL: request.URL, StatusCode: http.StatusNotFound}
	}
	return Document{URL: request.URL, StatusCode: http.StatusOK, Body: []byte("<html></html>")}, nil
}

func (s *fakeSite) Parse(doc Document) ParsedPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[doc.URL]
}

func (s *fakeSite) callCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

// recordingSleeper records requested backoffs without sleeping.
type recordingSleeper struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = append(s.durations, d)
	return nil
}

// memoryPersister keeps the last saved sequence in memory.
type memoryPersister struct {
	mu      sync.Mutex
	saved   []ItemRecord
	loadErr error
	saveErr error
	saves   int
}

func (p *memoryPersister) Load(context.Context) ([]ItemRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return append([]ItemRecord(nil), p.saved...), nil
}

func (p *memoryPersister) Save(_ context.Context, records []ItemRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saves++
	p.saved = append([]ItemRecord(nil), records...)
	return nil
}

func (p *memoryPersister) snapshot() []ItemRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ItemRecord(nil), p.saved...)
}

var errDiskFull = errors.New("disk full")

func fastPolicy(name string, attempts int) RetryPolicy {
	return RetryPolicy{Name: name, MaxAttempts: attempts, Timeout: time.Second, BackoffBase: 2, Sleeper: &recordingSleeper{}}
}
