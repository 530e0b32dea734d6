package session

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. Expired entries are dropped lazily on
// access and by Sweep.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

type memoryEntry struct {
	data    map[string]any
	expires time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryEntry)}
}

// Load returns the data saved under id.
func (m *Memory) Load(_ context.Context, id string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(entry.expires) {
		delete(m.items, id)
		return nil, ErrNotFound
	}

	out := make(map[string]any, len(entry.data))
	for k, v := range entry.data {
		out[k] = v
	}
	return out, nil
}

// Save persists data under id for ttl.
func (m *Memory) Save(_ context.Context, id string, data map[string]any, ttl time.Duration) error {
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}

	m.mu.Lock()
	m.items[id] = memoryEntry{data: copied, expires: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete removes the session.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.items {
		if now.After(entry.expires) {
			delete(m.items, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, including any not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
