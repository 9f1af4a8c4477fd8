package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by GetJSON when the key is absent or expired.
var ErrCacheMiss = fmt.Errorf("cache miss")

// Cache wraps a Connector with key prefixing and JSON helpers.
type Cache struct {
	connector  Connector
	keyPrefix  string
	defaultTTL time.Duration
}

// NewCache creates a cache instance over a connector.
func NewCache(connector Connector, keyPrefix string, defaultTTL time.Duration) *Cache {
	return &Cache{
		connector:  connector,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
	}
}

func (c *Cache) formatKey(key string) string {
	if c.keyPrefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", c.keyPrefix, key)
}

// Get retrieves a raw value; nil means not found.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.connector.Get(ctx, c.formatKey(key))
}

// Set stores a raw value; ttl <= 0 uses the cache default.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.connector.Set(ctx, c.formatKey(key), value, ttl)
}

// GetJSON retrieves and unmarshals a cached value into dest.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

// SetJSON marshals and stores a value.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(ctx, key, raw, ttl)
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.connector.Delete(ctx, c.formatKey(key))
}

// Standard TTLs for the data this service caches.
var (
	// Per-chain token lists move slowly; an hour keeps resolution fresh
	// without hammering the token-list endpoint on every turn.
	TokenListTTL = time.Hour

	// Market quotes go stale fast.
	QuoteTTL = 5 * time.Minute

	// SIWE nonces are single-use and short-lived.
	NonceTTL = 10 * time.Minute

	// Sessions last half a day, matching the web client's cookie lifetime.
	SessionTTL = 12 * time.Hour
)

// Cache key patterns.
const (
	TokenListKeyPattern = "token-list:%d"  // token-list:42161
	QuoteKeyPattern     = "cmc-quote:%s"   // cmc-quote:1027,5426
	NonceKeyPattern     = "siwe-nonce:%s"  // siwe-nonce:<nonce>
	SessionKeyPattern   = "session:%s"     // session:<token>
)
