package stores

import (
	"context"
	"sync"
	"time"

	tt "github.com/panyam/tracktime"
)

// MemoryStore keeps settings in process memory. It backs the "memory" store
// option and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]tt.Setting
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]tt.Setting)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[key]
	return rec.Value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) (*tt.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := tt.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	s.data[key] = rec
	return &rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok, nil
}
