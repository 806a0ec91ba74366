package storage

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-process map.
// This is the default backend: fast, no persistence, all data lost on exit.
//
// Expiry is evaluated by comparing each entry's stored deadline against the
// clock on every read. No timers are armed, which keeps tests deterministic
// and avoids leaking goroutines per key.
type MemoryStore struct {
	entries map[string]*entry
	mu      sync.Mutex

	// now is the clock used for expiry checks. Overridable for tests.
	now func() time.Time
}

// entry is a single counter with an optional expiry deadline.
type entry struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the current value for key.
func (m *MemoryStore) Get(ctx context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.liveLocked(key)
	if !ok {
		return 0, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key with an optional TTL.
func (m *MemoryStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Incr atomically increments key and returns the new value.
func (m *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.liveLocked(key)
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.value++
	return e.value, nil
}

// Expire sets the TTL for an existing key.
func (m *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.liveLocked(key)
	if !ok {
		return nil
	}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	return nil
}

// Del removes a key.
func (m *MemoryStore) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Keys returns all live keys matching pattern ('*' wildcard).
func (m *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	keys := make([]string, 0)
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !e.expiresAt.After(now) {
			continue
		}
		matched, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if matched {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Cleanup removes expired entries.
func (m *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	deleted := 0
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !e.expiresAt.After(now) {
			delete(m.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

// Close implements Store. The memory store holds no external resources.
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of entries currently held, expired or not.
// This is primarily for tests and the retention pruner's logging.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// liveLocked returns the entry for key if it exists and has not expired.
// Expired entries are deleted on sight. Caller must hold mu.
func (m *MemoryStore) liveLocked(key string) (*entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(m.now()) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}
