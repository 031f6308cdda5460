package cache

import (
	"errors"
	"time"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("cache: store closed")

type Cache[K comparable, V any] interface {
	// Get returns the value for key and true if present (and not expired).
	Get(key K) (V, bool)

	// Set stores the value for key using the cache's default TTL.
	Set(key K, value V)

	// SetWithTTL stores the value for key with a custom ttl (ttl > 0).
	SetWithTTL(key K, value V, ttl time.Duration)

	// Delete removes the key from the cache.
	Delete(key K)

	// Clear removes every key.
	Clear()

	// Len returns the number of items currently stored. Expired items not yet swept are counted.
	Len() int

	// GetAll returns a copy of all the cache contents (non-expired items).
	GetAll() map[K]V

	//// TTL Specific ////

	// StartCleanupDaemon starts a background cleanup cronjob that periodically removes expired entries.
	StartCleanupDaemon()

	// StopCleanupDaemon stops the background cleanup cronjob if running.
	StopCleanupDaemon()

	// Close stops cleanup cronjob and releases resources. After Close the cache can still be used, but TTL cronjob won't run.
	Close()
}

// Store holds gateway responses keyed by cache key.
// Implementations must be safe for concurrent use and must never return an
// entry whose TTL has elapsed.
type Store interface {
	// Get returns the live entry for key. A missing or expired entry is reported
	// as (nil, false, nil); errors are reserved for provider failures.
	Get(key string) (*Entry, bool, error)

	// Put stores the entry under key, replacing any previous entry.
	Put(key string, entry *Entry, ttl time.Duration) error

	// Delete removes a single key.
	Delete(key string) error

	// Purge removes every entry.
	Purge() error

	// Len returns the number of stored entries.
	Len() int

	Close() error
}
