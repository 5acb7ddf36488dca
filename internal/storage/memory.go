package storage

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Memory keeps tab storage in process memory.
type Memory struct {
	mu   sync.RWMutex
	tabs map[string]*tabValues
}

type tabValues struct {
	values  map[string][]byte
	touched time.Time
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{tabs: make(map[string]*tabValues)}
}

func (m *Memory) Get(_ context.Context, tab, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tabs[tab]
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := t.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Put(_ context.Context, tab, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tabs[tab]
	if !ok {
		t = &tabValues{values: make(map[string][]byte)}
		m.tabs[tab] = t
	}
	t.values[key] = slices.Clone(value)
	t.touched = time.Now()
	return nil
}

func (m *Memory) DropTab(_ context.Context, tab string) error {
	m.mu.Lock()
	delete(m.tabs, tab)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Expire(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, t := range m.tabs {
		if t.touched.Before(cutoff) {
			delete(m.tabs, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
