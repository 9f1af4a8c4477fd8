package data

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	connector, err := NewRedisConnector(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { connector.Close() })
	return NewCache(connector, "promptifi", time.Minute), mr
}

func TestCache_RedisRoundTrip(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	value, err := cache.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get on missing key failed: %v", err)
	}
	if value != nil {
		t.Fatal("missing key must return nil value")
	}

	if err := cache.Set(ctx, "greeting", []byte("hello"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err = cache.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "hello" {
		t.Errorf("Get = %q, want hello", value)
	}

	if err := cache.Delete(ctx, "greeting"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	value, _ = cache.Get(ctx, "greeting")
	if value != nil {
		t.Error("deleted key must be a miss")
	}
}

func TestCache_RedisKeyPrefixing(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "token-list:146", []byte("x"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !mr.Exists("promptifi:token-list:146") {
		t.Error("expected prefixed key in redis")
	}
}

func TestCache_RedisTTLExpiry(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "nonce", []byte("issued"), 10*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	mr.FastForward(11 * time.Minute)

	value, err := cache.Get(ctx, "nonce")
	if err != nil {
		t.Fatalf("Get after expiry failed: %v", err)
	}
	if value != nil {
		t.Error("expired key must be a miss")
	}
}

func TestCache_JSONHelpers(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := cache.SetJSON(ctx, "payload", payload{Name: "sonic", Count: 3}, time.Minute); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var got payload
	if err := cache.GetJSON(ctx, "payload", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got.Name != "sonic" || got.Count != 3 {
		t.Errorf("GetJSON = %+v", got)
	}

	var missing payload
	if err := cache.GetJSON(ctx, "absent", &missing); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryConnector(t *testing.T) {
	connector, err := NewMemoryConnector(1 << 20)
	if err != nil {
		t.Fatalf("failed to create memory connector: %v", err)
	}
	defer connector.Close()
	ctx := context.Background()

	if err := connector.Set(ctx, "key", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := connector.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "value" {
		t.Errorf("Get = %q, want value", value)
	}

	if err := connector.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	value, _ = connector.Get(ctx, "key")
	if value != nil {
		t.Error("deleted key must be a miss")
	}
}
