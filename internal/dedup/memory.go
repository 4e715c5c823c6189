package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/support-desk/pkg/util/keylock"
)

const sweepEvery = 256

type memoryRecord struct {
	replyID   string
	expiresAt time.Time
}

// MemoryStore keeps dedup state inside one process.
type MemoryStore struct {
	inflight *keylock.KeyedMutex
	now      func() time.Time

	mu     sync.Mutex
	recent map[string]memoryRecord
	writes int
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock lets tests control expiry.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		inflight: keylock.New(),
		now:      now,
		recent:   make(map[string]memoryRecord),
	}
}

func (m *MemoryStore) Acquire(ctx context.Context, key string) (func(), error) {
	return m.inflight.Lock(ctx, key)
}

func (m *MemoryStore) Recall(_ context.Context, fingerprint string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recent[fingerprint]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(rec.expiresAt) {
		delete(m.recent, fingerprint)
		return "", false, nil
	}
	return rec.replyID, true, nil
}

func (m *MemoryStore) Remember(_ context.Context, fingerprint, replyID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.recent[fingerprint] = memoryRecord{replyID: replyID, expiresAt: now.Add(ttl)}
	m.writes++
	if m.writes%sweepEvery == 0 {
		for k, rec := range m.recent {
			if !now.Before(rec.expiresAt) {
				delete(m.recent, k)
			}
		}
	}
	return nil
}

// Len reports how many records are retained, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recent)
}
