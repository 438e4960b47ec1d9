package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/metrics"
)

// Cache stores JSON-encodable values under string keys.
type Cache interface {
	// Get decodes the cached value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

func encode(value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache: encoding value: %w", err)
	}
	return data, nil
}

func decode(data []byte, dest interface{}) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache: decoding value: %w", err)
	}
	return nil
}

// Instrumented counts hits and misses per key prefix (the part before the first ':').
type Instrumented struct {
	Cache
	metrics *metrics.Registry
}

// NewInstrumented wraps c with hit/miss counters.
func NewInstrumented(c Cache, m *metrics.Registry) *Instrumented {
	return &Instrumented{Cache: c, metrics: m}
}

// Get implements Cache.
func (c *Instrumented) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	found, err := c.Cache.Get(ctx, key, dest)
	if err == nil && c.metrics != nil {
		prefix, _, _ := strings.Cut(key, ":")
		if found {
			c.metrics.CacheHitsTotal.WithLabelValues(prefix).Inc()
		} else {
			c.metrics.CacheMissesTotal.WithLabelValues(prefix).Inc()
		}
	}
	return found, err
}
