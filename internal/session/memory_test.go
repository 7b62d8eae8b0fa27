package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemoryStore(t *testing.T, ttl time.Duration) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Now()}
	store := NewMemoryStore(ttl)
	store.now = clock.Now
	t.Cleanup(store.Stop)
	return store, clock
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store, _ := newTestMemoryStore(t, time.Minute)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, 1, store.Count())
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store, _ := newTestMemoryStore(t, time.Minute)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_Attributes(t *testing.T) {
	store, _ := newTestMemoryStore(t, time.Minute)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.SetAttribute(ctx, s.ID, "color", "blue"))

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	v, ok := loaded.Attribute("color")
	assert.True(t, ok)
	assert.Equal(t, "blue", v)

	// Mutating the returned copy must not leak into the store
	loaded.Attributes["color"] = "red"
	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	v, _ = again.Attribute("color")
	assert.Equal(t, "blue", v)

	require.NoError(t, store.RemoveAttribute(ctx, s.ID, "color"))
	require.NoError(t, store.RemoveAttribute(ctx, s.ID, "color"))
	again, err = store.Get(ctx, s.ID)
	require.NoError(t, err)
	_, ok = again.Attribute("color")
	assert.False(t, ok)
}

func TestMemoryStore_SetAttributeOnDeletedSession(t *testing.T) {
	store, _ := newTestMemoryStore(t, time.Minute)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, s.ID))
	require.NoError(t, store.Delete(ctx, s.ID))

	err = store.SetAttribute(ctx, s.ID, "k", "v")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Touch(ctx, s.ID), ErrSessionNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store, clock := newTestMemoryStore(t, time.Minute)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	require.NoError(t, store.Touch(ctx, s.ID))

	clock.Advance(45 * time.Second)
	_, err = store.Get(ctx, s.ID)
	require.NoError(t, err, "touch should have extended the session")

	clock.Advance(2 * time.Minute)
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	store.cleanup()
	assert.Equal(t, 0, store.Count())
}

func TestMemoryStore_ConcurrentAttributeWrites(t *testing.T) {
	store, _ := newTestMemoryStore(t, time.Minute)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, store.SetAttribute(ctx, s.ID, name, name))
		}(name)
	}
	wg.Wait()

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Attributes, len(names))
}

func TestMemoryStore_TakeAttribute(t *testing.T) {
	store, _ := newTestMemoryStore(t, time.Minute)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SetAttribute(ctx, s.ID, "pending", "v1"))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, ok, err := store.TakeAttribute(ctx, s.ID, "pending")
			assert.NoError(t, err)
			if ok {
				assert.Equal(t, "v1", value)
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, taken)

	_, ok, err := store.TakeAttribute(ctx, "missing", "pending")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_StopIsIdempotent(t *testing.T) {
	store := NewMemoryStore(0)
	store.Stop()
	store.Stop()
	assert.Equal(t, DefaultTTL, store.ttl)
}
