package artifact

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	data      []byte
	createdAt time.Time
}

// MemoryStore keeps artifacts in process memory. Locators use the memory://
// scheme and resolve through Read.
type MemoryStore struct {
	mu        sync.RWMutex
	items     map[string]memoryEntry
	retention RetentionPolicy
}

func NewMemoryStore(retention RetentionPolicy) *MemoryStore {
	return &MemoryStore{
		items:     make(map[string]memoryEntry),
		retention: retention,
	}
}

func (s *MemoryStore) Store(_ context.Context, data []byte) (string, error) {
	id := uuid.NewString()
	copied := append([]byte(nil), data...)

	s.mu.Lock()
	s.items[id] = memoryEntry{data: copied, createdAt: time.Now().UTC()}
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Locate(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	_, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return "memory://" + id, nil
}

func (s *MemoryStore) Read(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	for id, e := range s.items {
		if s.retention.expired(e.createdAt, now) {
			delete(s.items, id)
		}
	}
	s.mu.Unlock()
}
