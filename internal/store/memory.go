package store

import (
	"context"
	"sync"
	"time"

	"github.com/dgallion1/syntaxd/internal/forest"
)

type memEntry struct {
	forest    *forest.Forest
	expiresAt time.Time
}

// Memory is an in-process cache with a TTL and a size bound. When full, the
// entry closest to expiry is evicted.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]memEntry
	ttl        time.Duration
	maxEntries int
}

func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Memory{
		entries:    make(map[string]memEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Get returns a private copy of the cached forest.
func (m *Memory) Get(_ context.Context, key string) (*forest.Forest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.forest.Clone(), true, nil
}

func (m *Memory) Put(_ context.Context, key string, f *forest.Forest) error {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictLocked(now)
	}
	m.entries[key] = memEntry{forest: f.Clone(), expiresAt: now.Add(m.ttl)}
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	if len(m.entries) >= m.maxEntries && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}
