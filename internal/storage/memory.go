package storage

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	closed bool
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Load(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return copyMap(m.data), nil
}

func (m *memoryStore) Apply(_ context.Context, set map[string]string, del []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for k, v := range set {
		m.data[k] = v
	}
	for _, k := range del {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
