package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "secret", BaseURL: srv.URL, Language: "en-US"})
}

func TestTrending(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trending/all/week", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "en-US", r.URL.Query().Get("language"))
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":1,"media_type":"movie","title":"Dune","poster_path":"/d.jpg","release_date":"2021-09-15"},
			{"id":2,"media_type":"tv","name":"Severance","first_air_date":"2022-02-18"}
		]}`))
	})

	got, err := c.Trending(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Dune", got[0].DisplayTitle())
	assert.Equal(t, "Severance", got[1].DisplayTitle())
	assert.Equal(t, "tv", got[1].Kind())
}

func TestTrending_InvalidArgs(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})

	_, err := c.Trending(context.Background(), "person", "week")
	assert.Error(t, err)
	_, err = c.Trending(context.Background(), "movie", "month")
	assert.Error(t, err)
}

func TestSearch_DropsPeople(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/multi", r.URL.Path)
		assert.Equal(t, "blade runner", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"results":[
			{"id":78,"media_type":"movie","title":"Blade Runner"},
			{"id":9,"media_type":"person","name":"Ridley Scott"}
		]}`))
	})

	got, err := c.Search(context.Background(), "  blade runner ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(78), got[0].ID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	_, err := c.Search(context.Background(), "   ")
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discover/movie", r.URL.Path)
		assert.Equal(t, "IN", r.URL.Query().Get("region"))
		assert.Equal(t, "hi", r.URL.Query().Get("with_original_language"))
		_, _ = w.Write([]byte(`{"results":null}`))
	})

	got, err := c.Discover(context.Background(), DiscoverParams{Region: "IN", OriginalLanguage: "hi"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMovie(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/550", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":550,"title":"Fight Club","overview":"...","vote_average":8.4,
			"release_date":"1999-10-15","genres":[{"id":18,"name":"Drama"}]}`))
	})

	m, err := c.Movie(context.Background(), 550)
	require.NoError(t, err)
	assert.Equal(t, "Fight Club", m.Title)
	assert.Equal(t, "movie", m.MediaType)
	assert.Equal(t, "1999", m.Year())
	assert.Equal(t, []string{"Drama"}, m.GenreNames())
}

func TestTV_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
	})

	_, err := c.TV(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "could not be found")
	assert.NotContains(t, err.Error(), "secret")
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.TopRated(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestTransportErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(Config{APIKey: "topsecretkey", BaseURL: srv.URL})

	_, err := c.TopRated(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "topsecretkey")
}

func TestMovie_InvalidID(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	_, err := c.Movie(context.Background(), 0)
	assert.Error(t, err)
}

func TestPosterURL(t *testing.T) {
	c := NewClient(Config{APIKey: "k", ImageBaseURL: "https://img.example/t/p/"})

	assert.Equal(t, "https://img.example/t/p/w500/abc.jpg", c.PosterURL("/abc.jpg", ""))
	assert.Equal(t, "https://img.example/t/p/w185/abc.jpg", c.PosterURL("abc.jpg", "w185"))
	assert.Equal(t, "", c.PosterURL("", "w500"))
}

func TestMetricLabel(t *testing.T) {
	assert.Equal(t, "/movie/{id}", metricLabel("/movie/550"))
	assert.Equal(t, "/trending/all/week", metricLabel("/trending/all/week"))
}
