package ingest

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Opener. It backs dry runs and tests.
type Memory struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemory returns an empty in-memory opener.
func NewMemory() *Memory {
	return &Memory{stores: make(map[string]*MemoryStore)}
}

// Authorize always succeeds.
func (m *Memory) Authorize(context.Context) error { return nil }

// OpenOrCreate returns the named store, creating it on first use.
func (m *Memory) OpenOrCreate(_ context.Context, name string) (Store, Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[name]; ok {
		return s, Handle{Location: "memory://" + name}, nil
	}
	s := &MemoryStore{}
	m.stores[name] = s
	return s, Handle{Created: true, Location: "memory://" + name}, nil
}

// Rows returns a copy of every raw row of the named store, header first.
func (m *Memory) Rows(name string) [][]string {
	m.mu.Lock()
	s, ok := m.stores[name]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Rows()
}

// MemoryStore keeps rows in a slice.
type MemoryStore struct {
	mu   sync.Mutex
	rows [][]string
}

// ReadAll returns the stored table.
func (s *MemoryStore) ReadAll(context.Context) (Table, error) {
	return RowsFromValues(s.Rows()), nil
}

// AppendRow stores a copy of values.
func (s *MemoryStore) AppendRow(_ context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, slices.Clone(values))
	return nil
}

// Rows returns a copy of the raw rows.
func (s *MemoryStore) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = slices.Clone(r)
	}
	return out
}
