package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps everything in process memory. Nothing survives a restart.
type MemoryBackend struct {
	mu    sync.RWMutex
	trees map[string]map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{trees: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, tree string, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.trees[tree][string(key)]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (m *MemoryBackend) Put(_ context.Context, tree string, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trees[tree]
	if !ok {
		t = make(map[string][]byte)
		m.trees[tree] = t
	}
	t[string(key)] = clone(value)
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, tree string, key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.trees[tree][string(key)]
	if !ok {
		return nil, false, nil
	}
	delete(m.trees[tree], string(key))
	return v, true, nil
}

func (m *MemoryBackend) Clear(_ context.Context, tree string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.trees, tree)
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
