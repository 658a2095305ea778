// Package tmdb is a small client for The Movie Database v3 API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/voyagen/reelvault/internal/metrics"
	"github.com/voyagen/reelvault/internal/models"
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p"
	defaultHTTPTimeout  = 15 * time.Second
)

// ErrNotFound is wrapped by APIError for 404 responses.
var ErrNotFound = errors.New("tmdb: not found")

// Config configures a Client. Only APIKey is required.
type Config struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
	Timeout      time.Duration
}

// Client is a TMDB HTTP client. It is safe for concurrent use.
type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	language     string
	httpClient   *http.Client
}

// NewClient creates a TMDB client from cfg, filling unset fields with the
// public API defaults.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	img := strings.TrimRight(cfg.ImageBaseURL, "/")
	if img == "" {
		img = defaultImageBaseURL
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      base,
		imageBaseURL: img,
		language:     cfg.Language,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tmdb %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tmdb %s: HTTP %d", e.Endpoint, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

type errorResponse struct {
	StatusMessage string `json:"status_message"`
}

type pagedResponse struct {
	Page         int            `json:"page"`
	Results      []models.Title `json:"results"`
	TotalResults int            `json:"total_results"`
	TotalPages   int            `json:"total_pages"`
}

// DiscoverParams narrows /discover/movie.
type DiscoverParams struct {
	Region           string
	OriginalLanguage string
	SortBy           string
}

// Trending returns the trending titles for mediaType (all, movie, tv) over
// window (day, week).
func (c *Client) Trending(ctx context.Context, mediaType, window string) ([]models.Title, error) {
	switch mediaType {
	case "":
		mediaType = models.MediaTypeAll
	case models.MediaTypeAll, models.MediaTypeMovie, models.MediaTypeTV:
	default:
		return nil, fmt.Errorf("tmdb: invalid media type %q", mediaType)
	}
	switch window {
	case "":
		window = models.WindowWeek
	case models.WindowDay, models.WindowWeek:
	default:
		return nil, fmt.Errorf("tmdb: invalid trending window %q", window)
	}
	return c.list(ctx, "/trending/"+mediaType+"/"+window, nil)
}

// Search runs a multi search across movies and shows. People are dropped.
func (c *Client) Search(ctx context.Context, query string) ([]models.Title, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("tmdb: search query is required")
	}
	titles, err := c.list(ctx, "/search/multi", url.Values{"query": {query}})
	if err != nil {
		return nil, err
	}
	out := titles[:0]
	for _, t := range titles {
		if t.MediaType == "person" {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Discover lists movies matching p.
func (c *Client) Discover(ctx context.Context, p DiscoverParams) ([]models.Title, error) {
	q := url.Values{}
	if p.Region != "" {
		q.Set("region", p.Region)
	}
	if p.OriginalLanguage != "" {
		q.Set("with_original_language", p.OriginalLanguage)
	}
	if p.SortBy != "" {
		q.Set("sort_by", p.SortBy)
	}
	return c.list(ctx, "/discover/movie", q)
}

// TopRated lists the top rated movies.
func (c *Client) TopRated(ctx context.Context) ([]models.Title, error) {
	return c.list(ctx, "/movie/top_rated", nil)
}

// Movie fetches movie details including genres.
func (c *Client) Movie(ctx context.Context, id int64) (*models.Title, error) {
	return c.detail(ctx, models.MediaTypeMovie, id)
}

// TV fetches show details including genres.
func (c *Client) TV(ctx context.Context, id int64) (*models.Title, error) {
	return c.detail(ctx, models.MediaTypeTV, id)
}

// PosterURL returns the absolute image URL for a poster path at size
// (e.g. "w500"), or "" when path is empty.
func (c *Client) PosterURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = "w500"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.imageBaseURL + "/" + size + path
}

func (c *Client) detail(ctx context.Context, mediaType string, id int64) (*models.Title, error) {
	if id <= 0 {
		return nil, fmt.Errorf("tmdb: invalid id %d", id)
	}
	var t models.Title
	if err := c.get(ctx, "/"+mediaType+"/"+strconv.FormatInt(id, 10), nil, &t); err != nil {
		return nil, err
	}
	t.MediaType = mediaType
	return &t, nil
}

func (c *Client) list(ctx context.Context, endpoint string, params url.Values) ([]models.Title, error) {
	var resp pagedResponse
	if err := c.get(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []models.Title{}, nil
	}
	return resp.Results, nil
}

// get issues a GET to endpoint and decodes the JSON body into dst.
// The api key never appears in returned errors.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dst any) error {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("api_key", c.apiKey)
	if c.language != "" && q.Get("language") == "" {
		q.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("tmdb %s: new request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.MetadataRequestsTotal.WithLabelValues(metricLabel(endpoint), "error").Inc()
		return fmt.Errorf("tmdb %s: %w", endpoint, redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()
	metrics.MetadataRequestsTotal.WithLabelValues(metricLabel(endpoint), strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("tmdb %s: read response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: e.StatusMessage}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("tmdb %s: decode: %w", endpoint, err)
	}
	return nil
}

// metricLabel collapses ids so detail lookups share one label value.
func metricLabel(endpoint string) string {
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// redactKey strips the api key from transport errors, which embed the URL.
func redactKey(err error, key string) error {
	var ue *url.Error
	if key != "" && errors.As(err, &ue) {
		ue.URL = strings.ReplaceAll(ue.URL, key, "REDACTED")
	}
	return err
}
