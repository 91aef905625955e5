package history

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/voucherdash/internal/core"
)

// DefaultMemoryCapacity bounds a MemoryStore.
const DefaultMemoryCapacity = 1000

// MemoryStore keeps the most recent attempts in process memory. When full,
// the oldest attempt is dropped.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	attempts []core.ImportAttempt // oldest first
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most capacity attempts.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) Init(context.Context) error { return nil }

func (m *MemoryStore) Record(_ context.Context, a core.ImportAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.FailedRows = append([]core.FailedRow(nil), a.FailedRows...)
	if len(m.attempts) == m.capacity {
		copy(m.attempts, m.attempts[1:])
		m.attempts = m.attempts[:len(m.attempts)-1]
	}
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]core.ImportAttempt, error) {
	limit = clampLimit(limit)

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.ImportAttempt, 0, min(limit, len(m.attempts)))
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.attempts[i])
	}
	return out, nil
}

func (m *MemoryStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.attempts[:0]
	var purged int64
	for _, a := range m.attempts {
		if a.SubmittedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, a)
	}
	m.attempts = kept
	return purged, nil
}

func (m *MemoryStore) Close() error { return nil }
