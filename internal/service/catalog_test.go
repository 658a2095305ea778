package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/reelvault/internal/cache"
	"github.com/voyagen/reelvault/internal/fetcher"
	"github.com/voyagen/reelvault/internal/models"
	"github.com/voyagen/reelvault/internal/tmdb"
)

// fakeMetadata counts upstream calls and can fail discover requests.
type fakeMetadata struct {
	calls        atomic.Int32
	failDiscover bool
	gate         chan struct{}
	started      chan struct{}
}

// wait blocks on gate like a slow upstream, giving up when ctx ends.
func (f *fakeMetadata) wait(ctx context.Context) error {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeMetadata) Trending(ctx context.Context, mediaType, window string) ([]models.Title, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return []models.Title{{ID: 1, Title: "Trending " + mediaType + " " + window}}, nil
}

func (f *fakeMetadata) Search(ctx context.Context, q string) ([]models.Title, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return []models.Title{{ID: 2, Title: q}}, nil
}

func (f *fakeMetadata) Discover(ctx context.Context, p tmdb.DiscoverParams) ([]models.Title, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.failDiscover {
		return nil, errors.New("upstream down")
	}
	return []models.Title{{ID: 3, Title: p.Region}}, nil
}

func (f *fakeMetadata) TopRated(ctx context.Context) ([]models.Title, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return []models.Title{{ID: 4, Title: "Top"}}, nil
}

func (f *fakeMetadata) Movie(ctx context.Context, id int64) (*models.Title, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if id == 404 {
		return nil, tmdb.ErrNotFound
	}
	return &models.Title{ID: id, Title: "Movie", MediaType: models.MediaTypeMovie}, nil
}

func (f *fakeMetadata) TV(ctx context.Context, id int64) (*models.Title, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return &models.Title{ID: id, Name: "Show", MediaType: models.MediaTypeTV}, nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *cache.Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = r.Close() })
	return mr, r
}

func TestCatalog_TrendingCached(t *testing.T) {
	meta := &fakeMetadata{}
	_, rds := newRedis(t)
	c := NewCatalog(meta, rds, time.Minute, fetcher.Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.Trending(ctx, "", "")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Trending all week", got[0].Title)
	}
	assert.Equal(t, int32(1), meta.calls.Load())
}

func TestCatalog_TTLExpiry(t *testing.T) {
	meta := &fakeMetadata{}
	mr, rds := newRedis(t)
	c := NewCatalog(meta, rds, time.Minute, fetcher.Options{})
	ctx := context.Background()

	_, err := c.Search(ctx, "dune")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = c.Search(ctx, "dune")
	require.NoError(t, err)

	assert.Equal(t, int32(2), meta.calls.Load())
}

func TestCatalog_NoRedisPassesThrough(t *testing.T) {
	meta := &fakeMetadata{}
	c := NewCatalog(meta, nil, time.Minute, fetcher.Options{})

	_, err := c.Movie(context.Background(), 7)
	require.NoError(t, err)
	_, err = c.Movie(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int32(2), meta.calls.Load())
}

func TestCatalog_ConcurrentMissesShareOneCall(t *testing.T) {
	meta := &fakeMetadata{gate: make(chan struct{})}
	c := NewCatalog(meta, nil, time.Minute, fetcher.Options{})

	var wg sync.WaitGroup
	results := make([]*models.Title, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tv, err := c.TV(context.Background(), 1399)
			assert.NoError(t, err)
			results[i] = tv
		}()
	}
	require.Eventually(t, func() bool { return meta.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Give the remaining callers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(meta.gate)
	wg.Wait()

	assert.Equal(t, int32(1), meta.calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "Show", r.Name)
	}
}

func TestCatalog_ErrorsAreNotCached(t *testing.T) {
	meta := &fakeMetadata{}
	_, rds := newRedis(t)
	c := NewCatalog(meta, rds, time.Minute, fetcher.Options{})

	_, err := c.Movie(context.Background(), 404)
	assert.ErrorIs(t, err, tmdb.ErrNotFound)
	_, err = c.Movie(context.Background(), 404)
	assert.ErrorIs(t, err, tmdb.ErrNotFound)
	assert.Equal(t, int32(2), meta.calls.Load())
}

func TestCatalog_HomeSections(t *testing.T) {
	meta := &fakeMetadata{failDiscover: true}
	c := NewCatalog(meta, nil, time.Minute, fetcher.Options{})

	sections := c.HomeSections(context.Background())

	require.Len(t, sections, 4)
	assert.Equal(t, []string{"Trending", "Bollywood", "Hollywood", "Top Rated"},
		[]string{sections[0].Title, sections[1].Title, sections[2].Title, sections[3].Title})
	assert.Len(t, sections[0].Items, 1)
	assert.NotNil(t, sections[1].Items)
	assert.Empty(t, sections[1].Items)
	assert.Empty(t, sections[2].Items)
	assert.Equal(t, "Top", sections[3].Items[0].Title)
}

func TestCatalog_LiveChannels(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:-1,One\nhttp://a/1\n"))
	}))
	defer srv.Close()

	_, rds := newRedis(t)
	c := NewCatalog(&fakeMetadata{}, rds, time.Minute, fetcher.Options{Timeout: time.Second})

	for i := 0; i < 2; i++ {
		got, err := c.LiveChannels(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, []models.ChannelEntry{{Name: "One", URL: "http://a/1"}}, got)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestCatalog_LiveChannelsRetrievalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewCatalog(&fakeMetadata{}, nil, time.Minute, fetcher.Options{Timeout: time.Second})

	_, err := c.LiveChannels(context.Background(), srv.URL)
	assert.True(t, fetcher.IsRetrievalError(err))
}

func TestCatalog_SharedLoadSurvivesCallerCancel(t *testing.T) {
	meta := &fakeMetadata{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	_, rds := newRedis(t)
	c := NewCatalog(meta, rds, time.Minute, fetcher.Options{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Trending(ctxA, "movie", "week")
		errA <- err
	}()
	<-meta.started

	type result struct {
		titles []models.Title
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		titles, err := c.Trending(context.Background(), "movie", "week")
		resB <- result{titles, err}
	}()
	// Let the second caller join the in-flight load before the first leaves.
	time.Sleep(50 * time.Millisecond)
	cancelA()

	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(meta.gate)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		require.Len(t, r.titles, 1)
		assert.Equal(t, "Trending movie week", r.titles[0].Title)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), meta.calls.Load())

	// The detached load still populated the cache.
	_, err := c.Trending(context.Background(), "movie", "week")
	require.NoError(t, err)
	assert.Equal(t, int32(1), meta.calls.Load())
}
