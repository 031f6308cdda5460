package cache

import (
	"container/list"
	"time"
)

// Len returns number of stored items.
// Uses read lock since it only reads the map length
func (c *LRUWithTTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns value if present and not expired
// Marks the element as most-recent
func (c *LRUWithTTL[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	element, ok := c.items[key]
	if !ok {
		return zero, false
	}
	entry := element.Value.(*ttlEntry[K, V])

	if isExpired(entry, c.clock.Now()) {
		c.ll.Remove(element)
		delete(c.items, key)
		return zero, false
	}

	c.ll.MoveToFront(element)
	return entry.value, true
}

// GetAll returns a shallow copy of the non-expired contents.
// Uses read lock since it only reads the map
func (c *LRUWithTTL[K, V]) GetAll() map[K]V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.clock.Now()
	out := make(map[K]V, len(c.items))
	for k, ele := range c.items {
		entry := ele.Value.(*ttlEntry[K, V])
		if !isExpired(entry, now) {
			out[k] = entry.value
		}
	}
	return out
}

// Delete removes the key from the cache (both the linked list node and the items map).
func (c *LRUWithTTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	element, ok := c.items[key]
	if !ok {
		return
	}
	c.ll.Remove(element)
	delete(c.items, key)
}

// Clear drops every entry.
func (c *LRUWithTTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[K]*list.Element, c.capacity)
}

// Set stores value with the default TTL
func (c *LRUWithTTL[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value with a specific ttl
func (c *LRUWithTTL[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		panic("ttl must be > 0")
	}
	c.setWithTTLInternal(key, value, c.clock.Now().Add(ttl))
}

// Actual setting
func (c *LRUWithTTL[K, V]) setWithTTLInternal(key K, value V, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// update if it's existing
	if element, ok := c.items[key]; ok {
		entry := element.Value.(*ttlEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.ll.MoveToFront(element)
		return
	}

	// if its full, evict to create space
	if len(c.items) >= c.capacity {
		tail := c.ll.Back()
		entry := tail.Value.(*ttlEntry[K, V])
		c.ll.Remove(tail)
		delete(c.items, entry.key)
	}

	entry := &ttlEntry[K, V]{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	}
	element := c.ll.PushFront(entry)
	c.items[key] = element
}

// isExpired reports whether now is at or past the entry's expiry.
func isExpired[K comparable, V any](entry *ttlEntry[K, V], now time.Time) bool {
	return !now.Before(entry.expiresAt)
}

// CRONJOB

// Close stops cleanup cronjob if running.
func (c *LRUWithTTL[K, V]) Close() {
	c.StopCleanupDaemon()
}

// StartCleanupDaemon starts a background goroutine that periodically evicts expired items.
func (c *LRUWithTTL[K, V]) StartCleanupDaemon() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cleanupRunning {
		return
	}
	c.cleanupRunning = true
	stop := make(chan struct{})
	c.cleanupStop = stop
	ticker := c.clock.NewTicker(c.cleanupInterval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.Chan():
				c.cleanupExpired()
			case <-stop:
				return
			}
		}
	}()
}

// cleanupExpired walks the list from the least recently used end and removes expired entries.
func (c *LRUWithTTL[K, V]) cleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	current := c.ll.Back()
	for current != nil {
		prev := current.Prev()
		entry := current.Value.(*ttlEntry[K, V])

		if isExpired(entry, now) {
			c.ll.Remove(current)
			delete(c.items, entry.key)
			removed++
		}

		current = prev
	}
	return removed
}

func (c *LRUWithTTL[K, V]) StopCleanupDaemon() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cleanupRunning {
		close(c.cleanupStop)
		c.cleanupRunning = false
	}
}
