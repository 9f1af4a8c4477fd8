package data

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// MemoryConnector backs the cache with an in-process ristretto store. It is
// the default when no Redis or DynamoDB configuration is supplied.
type MemoryConnector struct {
	cache *ristretto.Cache[string, []byte]
}

// NewMemoryConnector creates an in-process connector bounded at roughly
// maxBytes of cached payloads.
func NewMemoryConnector(maxBytes int64) (*MemoryConnector, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e6,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryConnector{cache: cache}, nil
}

func (m *MemoryConnector) Get(_ context.Context, key string) ([]byte, error) {
	value, found := m.cache.Get(key)
	if !found {
		return nil, nil
	}
	return value, nil
}

func (m *MemoryConnector) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl > 0 {
		m.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	} else {
		m.cache.Set(key, value, int64(len(value)))
	}
	// Wait for the set to be applied so a read-after-write within one turn
	// sees the entry.
	m.cache.Wait()
	return nil
}

func (m *MemoryConnector) Delete(_ context.Context, key string) error {
	m.cache.Del(key)
	return nil
}

func (m *MemoryConnector) Close() error {
	m.cache.Close()
	return nil
}
