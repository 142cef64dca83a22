package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxRecords caps the in-memory history so long-lived processes don't grow
// without bound.
const maxRecords = 200

// InMemoryStore is a thread-safe store used when a database is not configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []RenderRecord
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make([]RenderRecord, 0)}
}

// SaveRender prepends the record, newest first.
func (s *InMemoryStore) SaveRender(_ context.Context, record RenderRecord) (RenderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	s.records = append([]RenderRecord{record}, s.records...)
	if len(s.records) > maxRecords {
		s.records = s.records[:maxRecords]
	}
	return record, nil
}

// GetRender looks one record up by id.
func (s *InMemoryStore) GetRender(_ context.Context, id string) (RenderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.ID == id {
			return record, nil
		}
	}
	return RenderRecord{}, ErrNotFound
}

// ListRenders returns the session's records, newest first.
func (s *InMemoryStore) ListRenders(_ context.Context, sessionID string) ([]RenderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []RenderRecord
	for _, record := range s.records {
		if record.SessionID == sessionID {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() {}
