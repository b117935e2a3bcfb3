package activeslugs

import (
	"context"
	"sync"
)

// Memory keeps active slugs in process memory. Entries are lost on restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (s *Memory) Load(_ context.Context, clientID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[clientID]
	return v, ok, nil
}

func (s *Memory) Save(_ context.Context, clientID, slug string) error {
	s.mu.Lock()
	s.data[clientID] = slug
	s.mu.Unlock()
	return nil
}

func (s *Memory) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	delete(s.data, clientID)
	s.mu.Unlock()
	return nil
}
