package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/voyagen/reelvault/internal/cache"
	"github.com/voyagen/reelvault/internal/fetcher"
	"github.com/voyagen/reelvault/internal/log"
	"github.com/voyagen/reelvault/internal/metrics"
	"github.com/voyagen/reelvault/internal/models"
	"github.com/voyagen/reelvault/internal/tmdb"
)

// loadTimeout bounds a shared upstream load once it is detached from the
// callers' contexts.
const loadTimeout = time.Minute

// Metadata is the subset of the metadata API the catalog needs.
type Metadata interface {
	Trending(ctx context.Context, mediaType, window string) ([]models.Title, error)
	Search(ctx context.Context, query string) ([]models.Title, error)
	Discover(ctx context.Context, p tmdb.DiscoverParams) ([]models.Title, error)
	TopRated(ctx context.Context) ([]models.Title, error)
	Movie(ctx context.Context, id int64) (*models.Title, error)
	TV(ctx context.Context, id int64) (*models.Title, error)
}

// Section is one titled row on the home page.
type Section struct {
	Title string         `json:"title"`
	Items []models.Title `json:"items"`
}

// Catalog serves metadata and live channel lists, caching responses in
// Redis when one is configured. Concurrent misses for one key share a
// single upstream call.
type Catalog struct {
	meta      Metadata
	rds       *cache.Redis
	ttl       time.Duration
	fetchOpts fetcher.Options
	group     singleflight.Group
	logger    zerolog.Logger
}

// NewCatalog creates a Catalog. rds may be nil to disable caching.
func NewCatalog(meta Metadata, rds *cache.Redis, ttl time.Duration, fetchOpts fetcher.Options) *Catalog {
	return &Catalog{
		meta:      meta,
		rds:       rds,
		ttl:       ttl,
		fetchOpts: fetchOpts,
		logger:    log.WithComponent("catalog"),
	}
}

// Trending returns trending titles.
func (c *Catalog) Trending(ctx context.Context, mediaType, window string) ([]models.Title, error) {
	if mediaType == "" {
		mediaType = models.MediaTypeAll
	}
	if window == "" {
		window = models.WindowWeek
	}
	key := "trending:" + mediaType + ":" + window
	return cached(ctx, c, key, "trending", func(ctx context.Context) ([]models.Title, error) {
		return c.meta.Trending(ctx, mediaType, window)
	})
}

// Search runs a multi search. Keys are hashed so raw queries never land in
// Redis key names.
func (c *Catalog) Search(ctx context.Context, query string) ([]models.Title, error) {
	query = strings.TrimSpace(query)
	key := "search:" + shortHash(strings.ToLower(query))
	return cached(ctx, c, key, "search", func(ctx context.Context) ([]models.Title, error) {
		return c.meta.Search(ctx, query)
	})
}

// Movie returns movie details.
func (c *Catalog) Movie(ctx context.Context, id int64) (*models.Title, error) {
	return cached(ctx, c, fmt.Sprintf("movie:%d", id), "detail", func(ctx context.Context) (*models.Title, error) {
		return c.meta.Movie(ctx, id)
	})
}

// TV returns show details.
func (c *Catalog) TV(ctx context.Context, id int64) (*models.Title, error) {
	return cached(ctx, c, fmt.Sprintf("tv:%d", id), "detail", func(ctx context.Context) (*models.Title, error) {
		return c.meta.TV(ctx, id)
	})
}

// homeRows lists the home page rows in display order.
var homeRows = []struct {
	title string
	key   string
	load  func(ctx context.Context, m Metadata) ([]models.Title, error)
}{
	{"Trending", "trending:all:week", func(ctx context.Context, m Metadata) ([]models.Title, error) {
		return m.Trending(ctx, models.MediaTypeAll, models.WindowWeek)
	}},
	{"Bollywood", "discover:in-hi", func(ctx context.Context, m Metadata) ([]models.Title, error) {
		return m.Discover(ctx, tmdb.DiscoverParams{Region: "IN", OriginalLanguage: "hi"})
	}},
	{"Hollywood", "discover:us-en", func(ctx context.Context, m Metadata) ([]models.Title, error) {
		return m.Discover(ctx, tmdb.DiscoverParams{Region: "US", OriginalLanguage: "en"})
	}},
	{"Top Rated", "toprated", func(ctx context.Context, m Metadata) ([]models.Title, error) {
		return m.TopRated(ctx)
	}},
}

// HomeSections loads every home row concurrently. A failing row is logged
// and rendered empty; the page itself never fails.
func (c *Catalog) HomeSections(ctx context.Context) []Section {
	sections := make([]Section, len(homeRows))
	g, gctx := errgroup.WithContext(ctx)
	for i, row := range homeRows {
		sections[i] = Section{Title: row.title, Items: []models.Title{}}
		g.Go(func() error {
			items, err := cached(gctx, c, row.key, "home", func(ctx context.Context) ([]models.Title, error) {
				return row.load(ctx, c.meta)
			})
			if err != nil {
				c.logger.Warn().Err(err).Str("section", row.title).Msg("home section unavailable")
				return nil
			}
			sections[i].Items = items
			return nil
		})
	}
	_ = g.Wait()
	return sections
}

// LiveChannels fetches and parses the playlist at url. Retrieval failures
// come back as *fetcher.RetrievalError and are never cached.
func (c *Catalog) LiveChannels(ctx context.Context, url string) ([]models.ChannelEntry, error) {
	return cached(ctx, c, "iptv:"+shortHash(url), "iptv", func(ctx context.Context) ([]models.ChannelEntry, error) {
		return fetcher.FetchChannels(ctx, url, c.fetchOpts)
	})
}

// cached serves key from Redis, else loads it once across concurrent
// callers and stores the result. Cache errors only degrade to a reload.
func cached[T any](ctx context.Context, c *Catalog, key, kind string, load func(context.Context) (T, error)) (T, error) {
	if c.rds != nil {
		v, err := cache.Get[T](ctx, c.rds, key)
		if err == nil {
			metrics.CacheHits.WithLabelValues(kind).Inc()
			return v, nil
		}
		if !cache.IsMiss(err) {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		metrics.CacheMisses.WithLabelValues(kind).Inc()
	}

	// The shared load must outlive any single caller: one client going away
	// cannot fail the others waiting on the same key.
	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		v, err := load(lctx)
		if err != nil {
			return v, err
		}
		if c.rds != nil {
			if err := cache.Set(lctx, c.rds, key, v, c.ttl); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
			}
		}
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
