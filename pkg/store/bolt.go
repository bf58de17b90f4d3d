package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultBucket is the bbolt bucket used when BoltOptions.Bucket is empty.
const DefaultBucket = "zato_cache"

// BoltOptions configures a bbolt store.
type BoltOptions struct {
	// Bucket is the name of the bucket to use.
	Bucket string

	// OpenTimeout bounds waiting for the file lock. Defaults to one second.
	OpenTimeout time.Duration
}

// Bolt is a Store backed by a bbolt file.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBolt opens or creates a bbolt store at path.
func OpenBolt(path string, opts BoltOptions) (*Bolt, error) {
	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	bucket := []byte(DefaultBucket)
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Bolt{db: db, bucket: bucket}, nil
}

// Layout: 8 bytes big endian expiry (unix nanoseconds, 0 = never) || raw value.
func encodeEnvelope(value json.RawMessage, ttl time.Duration) []byte {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], value)
	return buf
}

// decodeEnvelope copies v, which is only valid inside its transaction.
func decodeEnvelope(v []byte) (Entry, error) {
	if len(v) < 8 {
		return Entry{}, ErrInvalidEntry
	}
	var entry Entry
	if ns := int64(binary.BigEndian.Uint64(v[:8])); ns > 0 {
		entry.ExpiresAt = time.Unix(0, ns)
	}
	entry.Value = append(json.RawMessage(nil), v[8:]...)
	return entry, nil
}

// lookup returns the live entry for key in b; expired entries read as missing.
func lookup(b *bolt.Bucket, key string) (Entry, bool, error) {
	v := b.Get([]byte(key))
	if v == nil {
		return Entry{}, false, nil
	}
	entry, err := decodeEnvelope(v)
	if err != nil {
		return Entry{}, false, err
	}
	if entry.IsExpired() {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Get returns the live value of key.
func (s *Bolt) Get(_ context.Context, key string) (Entry, error) {
	var entry Entry
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		entry, found, err = lookup(tx.Bucket(s.bucket), key)
		return err
	})
	if err != nil {
		StoreErrors.WithLabelValues(BackendBolt, "get").Inc()
		return Entry{}, fmt.Errorf("bolt get: %w", err)
	}
	if !found {
		StoreMisses.WithLabelValues(BackendBolt).Inc()
		return Entry{}, ErrNotFound
	}

	StoreHits.WithLabelValues(BackendBolt).Inc()
	return entry, nil
}

// Set stores value and returns the live value it replaced.
func (s *Bolt) Set(_ context.Context, key string, value json.RawMessage, ttl time.Duration) (Entry, bool, error) {
	var prev Entry
	var hadPrev bool

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var err error
		if prev, hadPrev, err = lookup(b, key); err != nil {
			// A corrupted value is overwritten.
			prev, hadPrev = Entry{}, false
		}
		return b.Put([]byte(key), encodeEnvelope(value, ttl))
	})
	if err != nil {
		StoreErrors.WithLabelValues(BackendBolt, "set").Inc()
		return Entry{}, false, fmt.Errorf("bolt set: %w", err)
	}

	return prev, hadPrev, nil
}

// Delete removes key. Removing an expired key reports ErrNotFound.
func (s *Bolt) Delete(_ context.Context, key string) (Entry, error) {
	var prev Entry
	var found bool

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var err error
		if prev, found, err = lookup(b, key); err != nil {
			return err
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		StoreErrors.WithLabelValues(BackendBolt, "delete").Inc()
		return Entry{}, fmt.Errorf("bolt delete: %w", err)
	}
	if !found {
		return Entry{}, ErrNotFound
	}

	return prev, nil
}

// Close closes the database file.
func (s *Bolt) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
