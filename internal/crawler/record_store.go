package crawler

import (
	"context"
	"sync"

	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// RecordStore is the in-memory, append-only sequence of admitted records.
// Appends and snapshots share one lock; flushes are serialized separately so
// a slow disk never blocks admission.
type RecordStore struct {
	mu      sync.Mutex
	records []ItemRecord

	flushMu   sync.Mutex
	persister RecordPersister
}

// NewRecordStore builds a store backed by persister.
func NewRecordStore(persister RecordPersister) *RecordStore {
	return &RecordStore{persister: persister}
}

// Load replaces the in-memory sequence with the persisted one.
func (s *RecordStore) Load(ctx context.Context) ([]ItemRecord, error) {
	records, err := s.persister.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.records = append([]ItemRecord(nil), records...)
	s.mu.Unlock()
	metrics.SetStoreRecords(len(records))
	return records, nil
}

// Append adds a record and returns the new length.
func (s *RecordStore) Append(record ItemRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return len(s.records)
}

// Len returns the number of records held.
func (s *RecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Snapshot returns a copy of the current sequence.
func (s *RecordStore) Snapshot() []ItemRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ItemRecord(nil), s.records...)
}

// Flush persists a consistent snapshot. On failure a *PersistenceError is
// returned and the previously persisted state is untouched.
func (s *RecordStore) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	snapshot := s.Snapshot()
	if err := s.persister.Save(ctx, snapshot); err != nil {
		metrics.ObserveFlush(false)
		return &PersistenceError{Records: len(snapshot), Err: err}
	}
	metrics.ObserveFlush(true)
	return nil
}
