package nullifier

import (
	"context"
	"sync"
	"time"

	"zkdomain/commit"
)

// MemoryStore is a process-local Store. It is suitable for tests and single
// instance deployments only.
type MemoryStore struct {
	mu      sync.Mutex
	records map[commit.Digest]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty store using now as its clock; nil means
// time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{records: make(map[commit.Digest]Record), now: now}
}

func (m *MemoryStore) InsertIfAbsent(ctx context.Context, key commit.Digest, rec Record, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if old, ok := m.records[key]; ok && !old.Expired(now) {
		return false, nil
	}
	if ttl > 0 && rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = now.Add(ttl)
	}
	m.records[key] = rec
	return true, nil
}

func (m *MemoryStore) Get(ctx context.Context, key commit.Digest) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.Expired(m.now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) Close() error { return nil }
