package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"peaks-bot/internal/domain"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttl[key] = ttl
	return nil
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func exerciseStore(t *testing.T, store domain.StateStore) {
	ctx := context.Background()

	empty, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.True(t, empty.Idle())
	require.NotNil(t, empty.Categories)

	st := domain.NewConversationState()
	st.Categories["abc123abc123"] = "Экспедиции"
	st.Awaiting = domain.AwaitNewsKeyword
	require.NoError(t, store.Put(ctx, 100, st))

	// изменение полученной копии не влияет на хранилище
	st.Categories["other"] = "Другое"

	got, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, domain.AwaitNewsKeyword, got.Awaiting)
	require.Equal(t, map[string]string{"abc123abc123": "Экспедиции"}, got.Categories)

	other, err := store.Get(ctx, 200)
	require.NoError(t, err)
	require.Empty(t, other.Categories)

	require.NoError(t, store.Clear(ctx, 100))
	got, err = store.Get(ctx, 100)
	require.NoError(t, err)
	require.True(t, got.Idle())
	require.Empty(t, got.Categories)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestCachedStore(t *testing.T) {
	cache := newMapCache()
	exerciseStore(t, NewCached(cache, time.Hour))
}

func TestCachedStoreTTL(t *testing.T) {
	cache := newMapCache()
	store := NewCached(cache, 30*time.Minute)
	require.NoError(t, store.Put(context.Background(), 7, domain.NewConversationState()))
	require.Equal(t, 30*time.Minute, cache.ttl["conv:7"])
}

func TestMemoryStoreConcurrentConversations(t *testing.T) {
	store := NewMemory()
	var wg sync.WaitGroup
	for i := int64(0); i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			st, _ := store.Get(context.Background(), id)
			st.Categories["t"] = "c"
			_ = store.Put(context.Background(), id, st)
		}(i)
	}
	wg.Wait()
	for i := int64(0); i < 20; i++ {
		st, _ := store.Get(context.Background(), i)
		require.Equal(t, "c", st.Categories["t"])
	}
}
