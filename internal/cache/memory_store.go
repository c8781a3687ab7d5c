package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type snapshot struct {
	items     []json.RawMessage
	writtenAt time.Time
}

// MemoryStore is the in-process fallback used when no database is configured,
// and the test double for the reconciler. Same TTL semantics as PgStore.
type MemoryStore struct {
	mu   sync.Mutex
	data map[Table]snapshot
	ttls TTLConfig
	now  func() time.Time
}

func NewMemoryStore(ttls TTLConfig) *MemoryStore {
	return &MemoryStore{
		data: make(map[Table]snapshot),
		ttls: ttls,
		now:  time.Now,
	}
}

func (s *MemoryStore) CacheData(ctx context.Context, table Table, items []json.RawMessage) error {
	copied := make([]json.RawMessage, len(items))
	copy(copied, items)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[table] = snapshot{items: copied, writtenAt: s.now()}
	return nil
}

func (s *MemoryStore) GetCachedData(ctx context.Context, table Table) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.data[table]
	if !ok {
		return nil, nil
	}
	if s.now().Sub(snap.writtenAt) > s.ttls.For(table) {
		return nil, nil
	}

	items := make([]json.RawMessage, len(snap.items))
	copy(items, snap.items)
	return items, nil
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[Table]snapshot)
	return nil
}
