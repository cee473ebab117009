package store

import (
	"context"
	"sync"
	"time"

	"github.com/consent-lineage/consent-sync-service/domain"
)

// DefaultDedupTTL bounds how long a submission attempt is remembered.
// After it lapses a retransmission is processed as a fresh attempt, which
// is safe: reconciliation still rejects anything stale.
const DefaultDedupTTL = 5 * time.Minute

type ttlEntry struct {
	decision  domain.Decision
	expiresAt time.Time
}

// TTLDedup is the in-process DedupCache.
type TTLDedup struct {
	mu    sync.Mutex
	items map[string]ttlEntry
}

func NewTTLDedup() *TTLDedup {
	return &TTLDedup{items: map[string]ttlEntry{}}
}

func (s *TTLDedup) Get(ctx context.Context, key string) (domain.Decision, bool, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked(now)
	entry, ok := s.items[key]
	if !ok {
		return "", false, nil
	}
	return entry.decision, true, nil
}

func (s *TTLDedup) Set(ctx context.Context, key string, decision domain.Decision, ttl time.Duration) error {
	if key == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	now := time.Now().UTC()
	s.mu.Lock()
	s.cleanupLocked(now)
	s.items[key] = ttlEntry{decision: decision, expiresAt: now.Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *TTLDedup) cleanupLocked(now time.Time) {
	for k, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, k)
		}
	}
}
