package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUTTL_GET_SET_DELETE(t *testing.T) {
	cache, err := NewLRUTTL[string, *Entry](100)
	if err != nil {
		t.Fatalf("NewLRUTTL error: %v", err)
	}
	defer cache.Close()

	cache.Set("key1", &Entry{
		Kind:        KindJSON,
		ContentType: "application/json",
		Payload:     []byte(`{"data":[]}`),
	})

	value, ok := cache.Get("key1")

	assert.True(t, ok)
	assert.Equal(t, KindJSON, value.Kind)
	assert.Equal(t, "application/json", value.ContentType)
	assert.Equal(t, `{"data":[]}`, string(value.Payload))

	cache.Delete("key1")
	value, ok = cache.Get("key1")
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestLRUTTL_eviction(t *testing.T) {
	// single capacity, so eviction should happen
	cache, err := NewLRUTTL[string, *Entry](1,
		WithDefaultTTL[string, *Entry](3*time.Second),
		WithCleanupStart[string, *Entry](false),
	)
	if err != nil {
		t.Fatalf("NewLRUTTL error: %v", err)
	}

	cache.Set("key1", &Entry{Payload: []byte("body")})
	// expect second key which evicts the first one
	cache.Set("key2", &Entry{Payload: []byte("body")})

	_, ok := cache.Get("key1")
	assert.False(t, ok)

	_, ok = cache.Get("key2")
	assert.True(t, ok)
}

func TestLRUTTL_recentlyUsedSurvivesEviction(t *testing.T) {
	cache, err := NewLRUTTL[string, int](2, WithCleanupStart[string, int](false))
	require.NoError(t, err)

	cache.Set("a", 1)
	cache.Set("b", 2)
	_, _ = cache.Get("a")
	cache.Set("c", 3)

	_, ok := cache.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestLRUTTL_invalidCapacity(t *testing.T) {
	_, err := NewLRUTTL[string, int](0)
	assert.Error(t, err)
}

func TestLRUTTL_expiryBoundary(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache, err := NewLRUTTL[string, string](10,
		WithClock[string, string](clock),
		WithCleanupStart[string, string](false),
	)
	require.NoError(t, err)

	cache.SetWithTTL("k", "v", time.Minute)

	clock.Advance(time.Minute - time.Nanosecond)
	v, ok := cache.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(time.Nanosecond)
	_, ok = cache.Get("k")
	assert.False(t, ok, "entry must not be served at createdAt+ttl")
	assert.Equal(t, 0, cache.Len(), "expired entry is dropped on read")
}

func TestLRUTTL_overwriteRefreshesTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache, err := NewLRUTTL[string, string](10,
		WithClock[string, string](clock),
		WithCleanupStart[string, string](false),
	)
	require.NoError(t, err)

	cache.SetWithTTL("k", "old", time.Minute)
	clock.Advance(50 * time.Second)
	cache.SetWithTTL("k", "new", time.Minute)
	clock.Advance(50 * time.Second)

	v, ok := cache.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestLRUTTL_cleanupDaemon(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache, err := NewLRUTTL[string, string](10,
		WithClock[string, string](clock),
		WithDefaultTTL[string, string](time.Second),
		WithCleanupInterval[string, string](5*time.Second),
	)
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("short", "x")
	cache.SetWithTTL("long", "y", time.Hour)
	assert.Equal(t, 2, cache.Len())

	clock.Advance(5 * time.Second)

	assert.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, map[string]string{"long": "y"}, cache.GetAll())
}

func TestLRUTTL_clear(t *testing.T) {
	cache, err := NewLRUTTL[string, int](10, WithCleanupStart[string, int](false))
	require.NoError(t, err)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Clear()

	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Get("a")
	assert.False(t, ok)
}

func TestLRUTTL_stopCleanupIsIdempotent(t *testing.T) {
	cache, err := NewLRUTTL[string, int](10)
	require.NoError(t, err)

	cache.StopCleanupDaemon()
	cache.Close()
	cache.StartCleanupDaemon()
	cache.Close()
}

func newStores(t *testing.T, clock clockwork.Clock) map[string]Store {
	t.Helper()
	opts := Options{Capacity: 16, CleanupInterval: time.Hour, Clock: clock}

	mem, err := NewMemoryStore(opts)
	require.NoError(t, err)
	sqlite, err := NewSQLiteStore("", opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		mem.Close()
		sqlite.Close()
	})
	return map[string]Store{ProviderMemory: mem, ProviderSQLite: sqlite}
}

func TestStore_roundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	for name, store := range newStores(t, clock) {
		t.Run(name, func(t *testing.T) {
			payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
			err := store.Put("https://uploads.example/covers/abc/cover.jpg", &Entry{
				Kind:        KindBinary,
				ContentType: "image/jpeg",
				Payload:     payload,
			}, time.Minute)
			require.NoError(t, err)

			got, ok, err := store.Get("https://uploads.example/covers/abc/cover.jpg")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, payload, got.Payload)
			assert.Equal(t, "image/jpeg", got.ContentType)
			assert.Equal(t, KindBinary, got.Kind)
			assert.Equal(t, time.Minute, got.TTL)
			assert.True(t, got.CreatedAt.Equal(clock.Now()))
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestStore_neverServesExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	for name, store := range newStores(t, clock) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put("k", &Entry{Kind: KindJSON, ContentType: "application/json", Payload: []byte(`{}`)}, 60*time.Second))

			clock.Advance(59 * time.Second)
			_, ok, err := store.Get("k")
			require.NoError(t, err)
			assert.True(t, ok)

			clock.Advance(time.Second)
			got, ok, err := store.Get("k")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestStore_putOverwrites(t *testing.T) {
	clock := clockwork.NewFakeClock()
	for name, store := range newStores(t, clock) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put("k", &Entry{Payload: []byte("one")}, time.Minute))
			require.NoError(t, store.Put("k", &Entry{Payload: []byte("two")}, time.Minute))

			got, ok, err := store.Get("k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "two", string(got.Payload))
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestStore_deleteAndPurge(t *testing.T) {
	clock := clockwork.NewFakeClock()
	for name, store := range newStores(t, clock) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				require.NoError(t, store.Put(fmt.Sprintf("k%d", i), &Entry{Payload: []byte("x")}, time.Minute))
			}

			require.NoError(t, store.Delete("k0"))
			_, ok, err := store.Get("k0")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, 2, store.Len())

			require.NoError(t, store.Purge())
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestStore_rejectsNonPositiveTTL(t *testing.T) {
	for name, store := range newStores(t, clockwork.NewFakeClock()) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.Put("k", &Entry{}, 0))
		})
	}
}

func TestStore_concurrentAccess(t *testing.T) {
	for name, store := range newStores(t, clockwork.NewRealClock()) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						key := fmt.Sprintf("k%d", j%4)
						assert.NoError(t, store.Put(key, &Entry{Payload: []byte{byte(i)}}, time.Minute))
						_, _, err := store.Get(key)
						assert.NoError(t, err)
					}
				}(i)
			}
			wg.Wait()
			assert.Equal(t, 4, store.Len())
		})
	}
}

func TestSQLiteStore_sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store, err := NewSQLiteStore("", Options{Clock: clock, CleanupInterval: time.Hour})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("short", &Entry{Payload: []byte("a")}, time.Second))
	require.NoError(t, store.Put("long", &Entry{Payload: []byte("b")}, time.Hour))

	clock.Advance(time.Second)
	n, err := store.Sweep()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, store.Len())
}

func TestSQLiteStore_closedStoreFails(t *testing.T) {
	store, err := NewSQLiteStore("", Options{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, _, err = store.Get("k")
	assert.Error(t, err)
	assert.ErrorIs(t, store.Close(), ErrClosed)
}

func TestNew_unknownProvider(t *testing.T) {
	_, err := New("memcached", "", Options{})
	assert.Error(t, err)
}
