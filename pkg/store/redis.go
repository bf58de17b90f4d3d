package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces cache keys in Redis.
const KeyPrefix = "zato:cache:"

// Redis is a Store backed by Redis.
type Redis struct {
	redis *redis.Client
}

// NewRedis creates a Redis store. The client is closed by Close.
func NewRedis(redisClient *redis.Client) *Redis {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Redis{redis: redisClient}
}

// Get retrieves a value. Expiry is enforced by Redis.
func (r *Redis) Get(ctx context.Context, key string) (Entry, error) {
	data, err := r.redis.Get(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			StoreMisses.WithLabelValues(BackendRedis).Inc()
			return Entry{}, ErrNotFound
		}
		StoreErrors.WithLabelValues(BackendRedis, "get").Inc()
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}

	StoreHits.WithLabelValues(BackendRedis).Inc()
	return Entry{Value: json.RawMessage(data)}, nil
}

// Set stores a value and returns the one it replaced in a single round trip.
func (r *Redis) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) (Entry, bool, error) {
	args := redis.SetArgs{Get: true}
	if ttl > 0 {
		args.TTL = ttl
	}

	prev, err := r.redis.SetArgs(ctx, KeyPrefix+key, []byte(value), args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		StoreErrors.WithLabelValues(BackendRedis, "set").Inc()
		return Entry{}, false, fmt.Errorf("redis set: %w", err)
	}

	return Entry{Value: json.RawMessage(prev)}, true, nil
}

// Delete removes a value and returns it.
func (r *Redis) Delete(ctx context.Context, key string) (Entry, error) {
	prev, err := r.redis.GetDel(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		StoreErrors.WithLabelValues(BackendRedis, "delete").Inc()
		return Entry{}, fmt.Errorf("redis getdel: %w", err)
	}

	return Entry{Value: json.RawMessage(prev)}, nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.redis.Close()
}
