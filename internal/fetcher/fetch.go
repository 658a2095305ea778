package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voyagen/reelvault/internal/metrics"
	"github.com/voyagen/reelvault/internal/models"
)

// DefaultMaxBytes bounds a playlist body when Options.MaxBytes is zero.
const DefaultMaxBytes = 16 << 20

// Options controls a playlist download. Client is optional; when nil a
// client with Timeout is created per call.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
	Client    *http.Client
}

// FetchPlaylist downloads the raw playlist text at url.
// Every failure is returned as a *RetrievalError.
func FetchPlaylist(ctx context.Context, url string, opts Options) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &RetrievalError{URL: url, Err: fmt.Errorf("NewRequest: %w", err)}
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &RetrievalError{URL: url, Err: fmt.Errorf("Do: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RetrievalError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", &RetrievalError{URL: url, Err: fmt.Errorf("ReadAll: %w", err)}
	}
	if int64(len(body)) > limit {
		return "", &RetrievalError{URL: url, Err: ErrTooLarge}
	}
	return string(body), nil
}

// FetchChannels downloads the playlist at url and parses it. The parser is
// not run when the download fails.
func FetchChannels(ctx context.Context, url string, opts Options) ([]models.ChannelEntry, error) {
	raw, err := FetchPlaylist(ctx, url, opts)
	if err != nil {
		metrics.PlaylistFetchFailures.Inc()
		return nil, err
	}
	entries, skipped := ParseM3UStats(raw)
	metrics.PlaylistEntriesParsed.Add(float64(len(entries)))
	metrics.PlaylistRecordsSkipped.Add(float64(skipped))
	return entries, nil
}
