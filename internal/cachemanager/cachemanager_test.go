package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheManager_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, int]("test", DefaultExpiration, DefaultCleanupInterval)

	_, found := c.Get(ctx, "missing")
	require.False(t, found)

	c.Set(ctx, "answer", 42, time.Minute)
	v, found := c.Get(ctx, "answer")
	require.True(t, found)
	require.Equal(t, 42, v)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	c.Set(ctx, "a", "1", time.Minute)
	c.Set(ctx, "b", "2", time.Minute)
	require.NoError(t, c.Delete(ctx, "a"))

	_, found := c.Get(ctx, "a")
	require.False(t, found)
	_, found = c.Get(ctx, "b")
	require.True(t, found)
}

func TestInMemoryCacheManager_Flush(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	c.Set(ctx, "a", "1", time.Minute)
	require.NoError(t, c.Flush(ctx))

	_, found := c.Get(ctx, "a")
	require.False(t, found)
}

func TestReadThroughCache_PopulatesOnMiss(t *testing.T) {
	ctx := context.Background()
	calls := 0
	backing := NewInMemoryCacheManager[string, int]("test", DefaultExpiration, DefaultCleanupInterval)
	rt := NewReadThroughCache(backing, func(ctx context.Context, input int) (int, error) {
		calls++
		return input * 2, nil
	}, false)

	v, err := rt.Get(ctx, "k", 21, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 1, calls)

	v, err = rt.Get(ctx, "k", 21, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 1, calls, "second read served from cache")
}

func TestReadThroughCache_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	backing := NewInMemoryCacheManager[string, int]("test", DefaultExpiration, DefaultCleanupInterval)
	rt := NewReadThroughCache(backing, func(ctx context.Context, input int) (int, error) {
		calls++
		return 0, errors.New("boom")
	}, false)

	_, err := rt.Get(ctx, "k", 1, time.Minute)
	require.Error(t, err)
	_, err = rt.Get(ctx, "k", 1, time.Minute)
	require.Error(t, err)
	require.Equal(t, 2, calls)
}

func TestReadThroughCache_SkipCache(t *testing.T) {
	ctx := context.Background()
	calls := 0
	backing := NewInMemoryCacheManager[string, int]("test", DefaultExpiration, DefaultCleanupInterval)
	rt := NewReadThroughCache(backing, func(ctx context.Context, input int) (int, error) {
		calls++
		return input, nil
	}, true)

	_, _ = rt.Get(ctx, "k", 1, time.Minute)
	_, _ = rt.Get(ctx, "k", 1, time.Minute)
	require.Equal(t, 2, calls)
}
