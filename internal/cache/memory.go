package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and the "memory" driver.
type Memory struct {
	mu         sync.RWMutex
	entries    map[Key]Entry
	defaultTTL time.Duration
	now        func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store with the given default TTL.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{
		entries:    map[Key]Entry{},
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source, for expiry tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || entry.Expired(m.now()) {
		return nil, false
	}
	out := make([]byte, len(entry.Payload))
	copy(out, entry.Payload)
	return out, true
}

func (m *Memory) Put(_ context.Context, key Key, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := m.now()
	stored := make([]byte, len(payload))
	copy(stored, payload)

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = Entry{
		Key:        key,
		Payload:    stored,
		CreatedAt:  now,
		TTLSeconds: TTLSeconds(ttl),
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Clear(_ context.Context, scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scope == "" {
		m.entries = map[Key]Entry{}
		return nil
	}
	for k := range m.entries {
		if k.Scope == scope {
			delete(m.entries, k)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
