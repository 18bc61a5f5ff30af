package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute)
}

func TestFetchJSONCachesUntilInvalidated(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return map[string]int{"value": calls}, nil
	}

	tags := []Tag{{Entity: "product", ID: 42}}
	var out map[string]int

	require.NoError(t, c.FetchJSON(ctx, "summary:42", tags, &out, loader))
	require.Equal(t, 1, out["value"])
	require.Equal(t, 1, calls)

	require.NoError(t, c.FetchJSON(ctx, "summary:42", tags, &out, loader))
	require.Equal(t, 1, out["value"])
	require.Equal(t, 1, calls)

	require.NoError(t, c.Invalidate(ctx, Tag{Entity: "product", ID: 42}))

	require.NoError(t, c.FetchJSON(ctx, "summary:42", tags, &out, loader))
	require.Equal(t, 2, out["value"])
	require.Equal(t, 2, calls)
}

func TestInvalidateIsScopedToTag(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	var out int
	require.NoError(t, c.FetchJSON(ctx, "summary:1", []Tag{{Entity: "product", ID: 1}}, &out, loader))
	require.NoError(t, c.FetchJSON(ctx, "summary:2", []Tag{{Entity: "product", ID: 2}}, &out, loader))
	require.Equal(t, 2, calls)

	require.NoError(t, c.Invalidate(ctx, Tag{Entity: "product", ID: 1}))

	// Product 2 entry survives, product 1 reloads.
	require.NoError(t, c.FetchJSON(ctx, "summary:2", []Tag{{Entity: "product", ID: 2}}, &out, loader))
	require.Equal(t, 2, calls)
	require.NoError(t, c.FetchJSON(ctx, "summary:1", []Tag{{Entity: "product", ID: 1}}, &out, loader))
	require.Equal(t, 3, calls)
}

func TestBuildKeyOrderIndependent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	a, err := c.BuildKey(ctx, "base", Tag{Entity: "client", ID: 1}, Tag{Entity: "product", ID: 2})
	require.NoError(t, err)
	b, err := c.BuildKey(ctx, "base", Tag{Entity: "product", ID: 2}, Tag{Entity: "client", ID: 1})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestFetchJSONWithoutClientPassesThrough(t *testing.T) {
	var c *Cache
	var out int
	err := c.FetchJSON(context.Background(), "k", nil, &out, func(context.Context) (interface{}, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, out)
}
