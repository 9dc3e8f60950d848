package credstore

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory only.
type MemoryStore struct {
	typed
	m *memoryKV
}

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	m := &memoryKV{values: make(map[string]string)}
	return &MemoryStore{typed: typed{kv: m}, m: m}
}

// Len reports how many keys are held.
func (s *MemoryStore) Len() int {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return len(s.m.values)
}

func (m *memoryKV) get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryKV) put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryKV) clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.values)
	return nil
}
