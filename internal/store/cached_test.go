package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/reelvault/internal/cache"
	"github.com/voyagen/reelvault/internal/models"
)

// countingStore counts reads reaching the inner store.
type countingStore struct {
	*Memory
	sourceReads  int
	channelReads int
}

func (c *countingStore) GetSourceByID(ctx context.Context, id int64) (*models.Source, error) {
	c.sourceReads++
	return c.Memory.GetSourceByID(ctx, id)
}

func (c *countingStore) ListChannels(ctx context.Context, f ChannelFilter) ([]models.Channel, int, error) {
	c.channelReads++
	return c.Memory.ListChannels(ctx, f)
}

func newCached(t *testing.T) (*countingStore, *CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = r.Close() })
	inner := &countingStore{Memory: NewMemory()}
	return inner, NewCachedStore(inner, r), mr
}

func TestCachedStore_GetSourceByID(t *testing.T) {
	inner, cs, _ := newCached(t)
	ctx := context.Background()
	id, err := cs.CreateOrGetSource(ctx, "s", "http://s", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		src, err := cs.GetSourceByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "s", src.Name)
	}
	assert.Equal(t, 1, inner.sourceReads)

	name := "renamed"
	require.NoError(t, cs.UpdateSource(ctx, id, SourceUpdate{Name: &name}))
	src, err := cs.GetSourceByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "renamed", src.Name)
	assert.Equal(t, 2, inner.sourceReads)
}

func TestCachedStore_NotFoundIsNotCached(t *testing.T) {
	inner, cs, _ := newCached(t)
	ctx := context.Background()

	_, err := cs.GetSourceByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cs.GetSourceByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, inner.sourceReads)
}

func TestCachedStore_ChannelsInvalidatedByPrune(t *testing.T) {
	inner, cs, _ := newCached(t)
	ctx := context.Background()
	sid, _ := cs.CreateOrGetSource(ctx, "s", "http://s", "")
	keep, _ := cs.UpsertChannel(ctx, &models.Channel{SourceID: sid, Name: "a", URL: "http://a"})
	_, _ = cs.UpsertChannel(ctx, &models.Channel{SourceID: sid, Name: "b", URL: "http://b"})

	_, total, err := cs.ListChannels(ctx, ChannelFilter{SourceID: &sid})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	_, _, _ = cs.ListChannels(ctx, ChannelFilter{SourceID: &sid})
	assert.Equal(t, 1, inner.channelReads)

	_, err = cs.RemoveStaleChannels(ctx, sid, []int64{keep})
	require.NoError(t, err)

	chs, total, err := cs.ListChannels(ctx, ChannelFilter{SourceID: &sid})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "a", chs[0].Name)
	assert.Equal(t, 2, inner.channelReads)
}

func TestFilterHash_StableForEqualValues(t *testing.T) {
	a, b := int64(3), int64(3)
	assert.Equal(t, filterHash(ChannelFilter{SourceID: &a}), filterHash(ChannelFilter{SourceID: &b}))
	assert.NotEqual(t, filterHash(ChannelFilter{SourceID: &a}), filterHash(ChannelFilter{}))
}
