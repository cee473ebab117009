package lineage

import (
	"context"
	"sync"
)

// MemoryLog keeps entries in a slice, for tests and single-process runs.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(ctx context.Context, entry Entry) error {
	l.mu.Lock()
	entry.Seq = int64(len(l.entries) + 1)
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return nil
}

// Entries returns a copy of the log in append order.
func (l *MemoryLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := make([]Entry, len(l.entries))
	copy(copied, l.entries)
	return copied
}
