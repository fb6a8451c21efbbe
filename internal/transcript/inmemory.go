package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps conversation history in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{turns: make(map[string][]Turn)}
}

func (s *InMemoryStore) SaveTurn(_ context.Context, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.turns[turn.ClientID] = append(s.turns[turn.ClientID], turn)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) History(_ context.Context, clientID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	all := s.turns[clientID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := append([]Turn(nil), all...)
	s.mu.RUnlock()
	return out, nil
}

func (s *InMemoryStore) Clear(_ context.Context, clientID string) error {
	s.mu.Lock()
	delete(s.turns, clientID)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
