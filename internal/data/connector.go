package data

import (
	"context"
	"time"
)

// Connector is a minimal key-value store used for caching token lists, market
// quotes, and auth session state. A nil value with a nil error means the key
// is not present (or expired).
type Connector interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
