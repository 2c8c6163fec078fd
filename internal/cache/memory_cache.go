package cache

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"
)

// sweepEvery bounds how often Set walks the whole map for expired entries.
const sweepEvery = time.Minute

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

// memoryCache is the in-process CacheService used when no Redis URL is
// configured and in tests.
type memoryCache struct {
	mu      sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryCache() CacheService {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := m.now()
	e := memoryEntry{raw: raw}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Sub(m.lastSweep) >= sweepEvery {
		m.sweepLocked(now)
	}
	m.entries[key] = e
	return nil
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// sweepLocked drops every expired entry, including keys nobody reads again.
func (m *memoryCache) sweepLocked(now time.Time) {
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
		}
	}
	m.lastSweep = now
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && e.expired(m.now()) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(e.raw, dest)
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// DeletePattern understands the glob syntax Redis SCAN MATCH uses for the
// common cases (*, ?, character classes).
func (m *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(m.now())
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}
