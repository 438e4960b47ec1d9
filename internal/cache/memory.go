package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local cache. Values are stored encoded so callers never
// share mutable state through it.
type Memory struct {
	cache *gocache.Cache
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an in-memory cache.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *Memory) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, found := m.cache.Get(key)
	if !found {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		m.cache.Delete(key)
		return false, nil
	}
	if err := decode(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	m.cache.Set(key, data, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Close is a no-op for the in-memory cache.
func (m *Memory) Close() error { return nil }
