package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test", time.Minute), mr
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Name: "featured", Count: calls}, nil
	}

	key, err := c.BuildKey(ctx, "catalog", "featured")
	require.NoError(t, err)
	require.Equal(t, "catalog:featured:v1", key)

	var got payload
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, payload{Name: "featured", Count: 1}, got)

	require.NoError(t, c.Bump(ctx))
	key, err = c.BuildKey(ctx, "catalog", "featured")
	require.NoError(t, err)
	require.Equal(t, "catalog:featured:v2", key)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 2, calls)
	require.Equal(t, 2, got.Count)
}

func TestFetchJSONExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Count: calls}, nil
	}
	var got payload
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	require.Equal(t, 2, calls)
}

func TestFetchJSONLoaderError(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("boom")
	var got payload
	err := c.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("k"))
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	key, err := c.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a:b", key)

	var got payload
	require.NoError(t, c.FetchJSON(ctx, key, &got, func(context.Context) (any, error) {
		return payload{Name: "direct"}, nil
	}))
	require.Equal(t, "direct", got.Name)
	require.NoError(t, c.Bump(ctx))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr(), time.Second)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	client, err = Connect(context.Background(), mr.Addr(), 200*time.Millisecond)
	require.Error(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}
