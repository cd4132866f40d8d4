package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-chatbot/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryCache(client, time.Minute, 5*time.Second), mr
}

func sampleTurns() []model.Turn {
	return []model.Turn{
		{SessionID: "s1", Query: "q1", Response: "r1", ToolUsed: "math"},
		{SessionID: "s1", Query: "q2", Response: "r2", ToolUsed: "rag"},
	}
}

func TestHistoryCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "s1", sampleTurns()))

	got, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q1", got[0].Query)
	assert.Equal(t, "rag", got[1].ToolUsed)
}

func TestHistoryCacheMissReturnsNil(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryCacheDirtyMarkerInvalidates(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "s1", sampleTurns()))
	require.NoError(t, c.MarkDirty(ctx, "s1"))

	// dirty sessions read as a miss even though a value was cached before
	got, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryCacheSetClearsDirtyMarker(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.MarkDirty(ctx, "s1"))
	require.NoError(t, c.Set(ctx, "s1", sampleTurns()))

	got, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHistoryCacheClearDirtyAlone(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.MarkDirty(ctx, "s1"))
	require.NoError(t, c.ClearDirty(ctx, "s1"))

	// marker is gone but MarkDirty also dropped the cached value
	got, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryCacheEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "s1", sampleTurns()))
	mr.FastForward(2 * time.Minute)

	got, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "s1", sampleTurns()))
	require.NoError(t, c.Invalidate(ctx, "s1"))

	got, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryCacheEmptyWindowIsCacheable(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "s1", []model.Turn{}))

	got, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}
