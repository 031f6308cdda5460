package cache

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultStoreCapacity = 4096

// Options are shared by every store provider.
type Options struct {
	// Capacity bounds the memory provider; least recently used entries are evicted first.
	Capacity int
	// CleanupInterval is the period of the background expiry sweep.
	CleanupInterval time.Duration
	Clock           clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = defaultStoreCapacity
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = defaultCleanupInterval
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// MemoryStore is the in-process Store backed by LRUWithTTL.
type MemoryStore struct {
	lru   *LRUWithTTL[string, *Entry]
	clock clockwork.Clock
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts Options) (*MemoryStore, error) {
	opts = opts.withDefaults()
	lru, err := NewLRUTTL[string, *Entry](opts.Capacity,
		WithCleanupInterval[string, *Entry](opts.CleanupInterval),
		WithClock[string, *Entry](opts.Clock),
	)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}
	return &MemoryStore{lru: lru, clock: opts.Clock}, nil
}

func (m *MemoryStore) Get(key string) (*Entry, bool, error) {
	entry, ok := m.lru.Get(key)
	if !ok || !entry.Live(m.clock.Now()) {
		return nil, false, nil
	}
	return entry, true, nil
}

func (m *MemoryStore) Put(key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("memory store: ttl must be > 0, got %s", ttl)
	}
	stored := *entry
	stored.Key = key
	stored.CreatedAt = m.clock.Now()
	stored.TTL = ttl
	m.lru.SetWithTTL(key, &stored, ttl)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.lru.Delete(key)
	return nil
}

func (m *MemoryStore) Purge() error {
	m.lru.Clear()
	return nil
}

func (m *MemoryStore) Len() int {
	return m.lru.Len()
}

func (m *MemoryStore) Close() error {
	m.lru.Close()
	return nil
}
