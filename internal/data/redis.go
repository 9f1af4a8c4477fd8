package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConnector backs the cache with a shared Redis instance so multiple
// replicas see the same token lists, quotes, and sessions. The underlying
// client is also handed to redsync for per-conversation turn locks.
type RedisConnector struct {
	client *redis.Client
}

// NewRedisConnector connects to addr and verifies the connection with a ping.
func NewRedisConnector(ctx context.Context, addr, password string, db int) (*RedisConnector, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisConnector{client: client}, nil
}

// Client exposes the raw client for lock construction.
func (r *RedisConnector) Client() *redis.Client {
	return r.client
}

func (r *RedisConnector) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (r *RedisConnector) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisConnector) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *RedisConnector) Close() error {
	return r.client.Close()
}
