// Package store holds the server-side persistence: the authoritative
// consent record per subject and the duplicate-submission cache.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/consent-lineage/consent-sync-service/domain"
)

// Authoritative is the server's record of truth, keyed by subject. The
// validity engine is its only writer and always accesses it from inside
// the per-subject critical section.
type Authoritative interface {
	Load(ctx context.Context, subjectID string) (domain.ConsentRecord, bool, error)
	Save(ctx context.Context, record domain.ConsentRecord) error
}

// DedupCache remembers the decision for a submission attempt key for a
// bounded time, so identical retransmissions can be answered without
// re-running validation or touching the authoritative record.
type DedupCache interface {
	Get(ctx context.Context, key string) (domain.Decision, bool, error)
	Set(ctx context.Context, key string, decision domain.Decision, ttl time.Duration) error
}

// MemoryStore is the default in-process Authoritative implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.ConsentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]domain.ConsentRecord{}}
}

func (s *MemoryStore) Load(ctx context.Context, subjectID string) (domain.ConsentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[subjectID]
	return record, ok, nil
}

func (s *MemoryStore) Save(ctx context.Context, record domain.ConsentRecord) error {
	s.mu.Lock()
	s.records[record.SubjectID] = record
	s.mu.Unlock()
	return nil
}
