// Package store provides the key/value backends behind the reference cache
// API server.
//
// Two backends are available:
//
//   - Redis: values live under the zato:cache: prefix and expire via native
//     TTLs. Set and Delete return the previous value atomically with
//     SET ... GET and GETDEL (Redis 6.2 or later).
//   - bbolt: a single-file store for development and tests. Every value
//     carries an expiry envelope; expired values read as missing.
//
// Values are raw JSON and stored verbatim.
//
// # Basic Usage
//
//	s := store.NewRedis(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//	defer s.Close()
//
//	prev, hadPrev, err := s.Set(ctx, "counter", json.RawMessage(`1`), 0)
//	entry, err := s.Get(ctx, "counter")
//	if errors.Is(err, store.ErrNotFound) {
//		// miss
//	}
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the key does not exist or has expired.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidEntry indicates a stored value is corrupted.
	ErrInvalidEntry = errors.New("invalid store entry")
)

// Entry is a stored value.
type Entry struct {
	// Value is the raw JSON value.
	Value json.RawMessage

	// ExpiresAt is zero for entries without expiry, or when the backend
	// does not report it.
	ExpiresAt time.Time
}

// IsExpired returns true if the entry has an expiry in the past.
func (e Entry) IsExpired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Store is a key/value backend. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the entry for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)

	// Set stores value under key. A ttl <= 0 means no expiry. The previous
	// entry is returned when one existed.
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) (prev Entry, hadPrev bool, err error)

	// Delete removes key and returns the removed entry, or ErrNotFound.
	Delete(ctx context.Context, key string) (prev Entry, err error)

	// Close releases the backend.
	Close() error
}

// Backend names, as accepted by Open.
const (
	BackendRedis = "redis"
	BackendBolt  = "bolt"
)
