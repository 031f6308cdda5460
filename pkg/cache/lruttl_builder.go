package cache

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultTTL = 60 * time.Second
const defaultCleanupInterval = 30 * time.Second

// LRUOption is a functional option for building LRUTTL cache
type LRUOption[K comparable, V any] func(*LRUWithTTL[K, V])

// ttlEntry stored in list.Element
type ttlEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRU cache with TTL based cleanup
type LRUWithTTL[K comparable, V any] struct {
	capacity int
	mu       sync.RWMutex
	ll       *list.List
	items    map[K]*list.Element
	clock    clockwork.Clock

	defaultTTL      time.Duration
	cleanupInterval time.Duration

	cleanupStop    chan struct{}
	cleanupRunning bool
}

var _ Cache[string, int] = (*LRUWithTTL[string, int])(nil)

// WithDefaultTTL sets the TTL used by Set().
func WithDefaultTTL[K comparable, V any](ttl time.Duration) LRUOption[K, V] {
	return func(c *LRUWithTTL[K, V]) {
		if ttl > 0 {
			c.defaultTTL = ttl
		} else {
			panic("default TTL must be > 0")
		}
	}
}

// WithCleanupInterval configures how often the cleanup daemon sweeps expired entries.
func WithCleanupInterval[K comparable, V any](interval time.Duration) LRUOption[K, V] {
	return func(c *LRUWithTTL[K, V]) {
		if interval > 0 {
			c.cleanupInterval = interval
		} else {
			panic("cleanup interval must be > 0")
		}
	}
}

// WithCleanupStart configures whether to start the cleanup cronjob on cache creation.
func WithCleanupStart[K comparable, V any](cleanupRunning bool) LRUOption[K, V] {
	return func(c *LRUWithTTL[K, V]) {
		c.cleanupRunning = cleanupRunning
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock[K comparable, V any](clock clockwork.Clock) LRUOption[K, V] {
	return func(c *LRUWithTTL[K, V]) {
		c.clock = clock
	}
}

// NewLRUTTL creates an LRU cache with TTL based cleanup.
// Capacity must be > 0. Provide options to configure TTL and cleanup interval.
func NewLRUTTL[K comparable, V any](capacity int, opts ...LRUOption[K, V]) (*LRUWithTTL[K, V], error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be > 0")
	}

	c := &LRUWithTTL[K, V]{
		capacity:        capacity,
		ll:              list.New(),
		items:           make(map[K]*list.Element, capacity),
		clock:           clockwork.NewRealClock(),
		defaultTTL:      defaultTTL,
		cleanupInterval: defaultCleanupInterval,
		cleanupRunning:  true,
	}

	for _, o := range opts {
		o(c)
	}

	start := c.cleanupRunning
	c.cleanupRunning = false
	if start {
		c.StartCleanupDaemon()
	}
	return c, nil
}
