package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelvault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Playlist metrics
var (
	PlaylistEntriesParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelvault_playlist_entries_parsed_total",
			Help: "Channel entries produced by the M3U parser",
		},
	)

	PlaylistRecordsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelvault_playlist_records_skipped_total",
			Help: "EXTINF records dropped for lack of an http URL line",
		},
	)

	PlaylistFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelvault_playlist_fetch_failures_total",
			Help: "Playlist downloads that failed before parsing",
		},
	)
)

// Metadata API metrics
var (
	MetadataRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelvault_metadata_requests_total",
			Help: "Requests sent to the metadata API",
		},
		[]string{"endpoint", "status"},
	)
)

// Cache metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelvault_cache_hits_total",
			Help: "Cache lookups served from Redis",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelvault_cache_misses_total",
			Help: "Cache lookups that fell through to the origin",
		},
		[]string{"kind"},
	)
)
