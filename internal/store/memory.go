package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used by tests and by embedded setups without
// a database. A single mutex covers every operation, which makes Update and
// UpdateMulti trivially atomic.
type Memory struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return cloneValue(value), nil
}

// Set writes the value under key.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = cloneValue(value)
	return nil
}

// Delete removes the record under key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)
	return nil
}

// ListByPrefix returns the values of every record whose key starts with
// prefix, ordered by key.
func (m *Memory) ListByPrefix(_ context.Context, prefix string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.records))
	for key := range m.records {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		values = append(values, cloneValue(m.records[key]))
	}
	return values, nil
}

// Update runs fn on the current value of key under the store lock.
func (m *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current []byte
	if value, ok := m.records[key]; ok {
		current = cloneValue(value)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	m.records[key] = cloneValue(next)
	return nil
}

// UpdateMulti runs fn on the current values of keys under the store lock.
func (m *Memory) UpdateMulti(_ context.Context, keys []string, fn MultiUpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, ok := m.records[key]; ok {
			current[key] = cloneValue(value)
		}
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if value, ok := next[key]; ok {
			m.records[key] = cloneValue(value)
		}
	}
	return nil
}

func cloneValue(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
