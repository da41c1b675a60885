package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local TTL cache.
type Memory struct {
	mu    sync.Mutex
	rows  map[string]entry
	nowFn func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{rows: map[string]entry{}, nowFn: time.Now}
}

// Get returns a copy of the value stored under key. Expired entries are
// dropped and reported as missing.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return nil, false, nil
	}
	if !row.expiresAt.IsZero() && m.nowFn().After(row.expiresAt) {
		delete(m.rows, key)
		return nil, false, nil
	}
	return append([]byte(nil), row.value...), true, nil
}

// Set stores value under key. A non-positive ttl keeps the entry until it
// is invalidated.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		row.expiresAt = m.nowFn().Add(ttl)
	}
	m.rows[key] = row
	return nil
}

// Invalidate deletes every key matching the glob pattern and returns how many were removed.
func (m *Memory) Invalidate(_ context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for key := range m.rows {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.rows, key)
			count++
		}
	}
	return count, nil
}

// Len reports the number of stored entries, including expired ones not yet evicted.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
