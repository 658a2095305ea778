package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagen/reelvault/internal/cache"
	"github.com/voyagen/reelvault/internal/log"
	"github.com/voyagen/reelvault/internal/metrics"
	"github.com/voyagen/reelvault/internal/models"
)

// Cache TTLs for different entity types.
const (
	ttlSources  = 2 * time.Minute
	ttlSource   = 5 * time.Minute
	ttlChannels = 1 * time.Minute
)

// CachedStore wraps a Store with a Redis caching layer.
// Reads are served from cache when possible; writes invalidate.
type CachedStore struct {
	inner  Store
	cache  *cache.Redis
	logger zerolog.Logger
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{inner: inner, cache: c, logger: log.WithComponent("store-cache")}
}

// --- cached reads ---

func (c *CachedStore) ListSources(ctx context.Context) ([]models.Source, error) {
	const key = "sources:all"
	return readThrough(ctx, c, key, "sources", ttlSources, func() ([]models.Source, error) {
		return c.inner.ListSources(ctx)
	})
}

func (c *CachedStore) GetSourceByID(ctx context.Context, sourceID int64) (*models.Source, error) {
	key := fmt.Sprintf("source:%d", sourceID)
	return readThrough(ctx, c, key, "source", ttlSource, func() (*models.Source, error) {
		return c.inner.GetSourceByID(ctx, sourceID)
	})
}

// channelListResult caches the ListChannels tuple.
type channelListResult struct {
	Channels []models.Channel `json:"channels"`
	Total    int              `json:"total"`
}

func (c *CachedStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	filter.Normalize()
	key := fmt.Sprintf("channels:%s", filterHash(filter))
	res, err := readThrough(ctx, c, key, "channels", ttlChannels, func() (channelListResult, error) {
		chs, total, err := c.inner.ListChannels(ctx, filter)
		return channelListResult{Channels: chs, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Channels, res.Total, nil
}

// --- writes with invalidation ---

func (c *CachedStore) CreateOrGetSource(ctx context.Context, name, url, userAgent string) (int64, error) {
	id, err := c.inner.CreateOrGetSource(ctx, name, url, userAgent)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, fmt.Sprintf("source:%d", id), "sources:all")
	return id, nil
}

func (c *CachedStore) UpdateSource(ctx context.Context, sourceID int64, update SourceUpdate) error {
	if err := c.inner.UpdateSource(ctx, sourceID, update); err != nil {
		return err
	}
	c.invalidate(ctx, fmt.Sprintf("source:%d", sourceID), "sources:all")
	return nil
}

func (c *CachedStore) DeleteSource(ctx context.Context, sourceID int64) error {
	if err := c.inner.DeleteSource(ctx, sourceID); err != nil {
		return err
	}
	c.invalidate(ctx, fmt.Sprintf("source:%d", sourceID), "sources:all")
	c.invalidatePattern(ctx, "channels:*")
	return nil
}

func (c *CachedStore) UpdateSourceLastUpdated(ctx context.Context, sourceID int64) error {
	if err := c.inner.UpdateSourceLastUpdated(ctx, sourceID); err != nil {
		return err
	}
	c.invalidate(ctx, fmt.Sprintf("source:%d", sourceID), "sources:all")
	return nil
}

// UpsertChannel does not invalidate per call; ingest finishes with
// RemoveStaleChannels, which drops every channel list.
func (c *CachedStore) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	return c.inner.UpsertChannel(ctx, ch)
}

func (c *CachedStore) RemoveStaleChannels(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	n, err := c.inner.RemoveStaleChannels(ctx, sourceID, keepIDs)
	if err != nil {
		return 0, err
	}
	c.invalidatePattern(ctx, "channels:*")
	return n, nil
}

// --- helpers ---

func readThrough[T any](ctx context.Context, c *CachedStore, key, kind string, ttl time.Duration, load func() (T, error)) (T, error) {
	if v, err := cache.Get[T](ctx, c.cache, key); err == nil {
		metrics.CacheHits.WithLabelValues(kind).Inc()
		return v, nil
	} else if !cache.IsMiss(err) {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
	}
	metrics.CacheMisses.WithLabelValues(kind).Inc()

	v, err := load()
	if err != nil {
		return v, err
	}
	if err := cache.Set(ctx, c.cache, key, v, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return v, nil
}

// invalidate deletes exact cache keys, logging any errors.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache del failed")
	}
}

// invalidatePattern deletes all keys matching the given glob patterns.
func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			c.logger.Warn().Err(err).Str("pattern", p).Msg("cache del pattern failed")
		}
	}
}

// filterHash produces a short deterministic hash for a ChannelFilter so it
// can be used as part of a cache key.
func filterHash(f ChannelFilter) string {
	sid := "all"
	if f.SourceID != nil {
		sid = fmt.Sprintf("%d", *f.SourceID)
	}
	raw := fmt.Sprintf("%s|%s|%d|%d", sid, f.Search, f.Limit, f.Offset)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}
