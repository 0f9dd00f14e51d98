package crawler

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/catalog-crawler/internal/identity"
)

// Fetcher performs a single GET. Non-2xx responses are returned as *StatusError.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (Document, error)
}

// PageParser extracts titles and link classes from a fetched document.
type PageParser interface {
	Parse(doc Document) ParsedPage
}

// RecordPersister loads and saves the full record sequence.
type RecordPersister interface {
	Load(ctx context.Context) ([]ItemRecord, error)
	Save(ctx context.Context, records []ItemRecord) error
}

// RecordSink receives every admitted record (Pub/Sub, Postgres, ...).
type RecordSink interface {
	Record(ctx context.Context, runID string, record ItemRecord) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// DuplicateChecker is the read side of the identity index.
type DuplicateChecker interface {
	IsDuplicate(url, title string) (bool, identity.Reason)
}

// ItemResolver turns an entry URL into a record.
type ItemResolver interface {
	Resolve(ctx context.Context, entryURL string) ItemRecord
}

// Admitter performs the atomic admission step.
type Admitter interface {
	Admit(ctx context.Context, record ItemRecord) (bool, identity.Reason)
}

// Pacer blocks until the next request to url may be issued.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
