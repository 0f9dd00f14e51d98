package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCorruptStore marks a persisted store that exists but cannot be decoded.
var ErrCorruptStore = errors.New("persisted store is corrupt")

// StatusError is returned by fetchers for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// FetchFailure is the typed result of an exhausted retry loop.
type FetchFailure struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed flush. The previous on-disk state is left intact.
type PersistenceError struct {
	Records int
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("flush %d records: %v", e.Records, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
