package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is BackendRedis or BackendBolt.
	Backend string

	// RedisURL is either host:port or a redis:// URL.
	RedisURL string

	// BoltPath is the bbolt file.
	BoltPath string
}

// DefaultConfig returns a configuration for a local Redis.
func DefaultConfig() Config {
	return Config{
		Backend:  BackendRedis,
		RedisURL: "localhost:6379",
		BoltPath: "zato-cache.bbolt",
	}
}

// Open creates the backend described by cfg. A Redis backend is pinged
// before it is returned.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendRedis, "":
		opts, err := redisOptions(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		s := NewRedis(redis.NewClient(opts))
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		return s, nil
	case BackendBolt:
		return OpenBolt(cfg.BoltPath, BoltOptions{})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func redisOptions(url string) (*redis.Options, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: url}, nil
}
