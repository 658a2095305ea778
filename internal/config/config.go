package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/voyagen/reelvault/internal/fetcher"
)

// ErrMissingTMDBKey is returned when no metadata API key is configured.
var ErrMissingTMDBKey = errors.New("TMDB_API_KEY is required")

// Defaults applied by Load and LoadFromFile.
const (
	DefaultServerPort       = "8080"
	DefaultUserAgent        = "ReelVault/1.0"
	DefaultTimeout          = 30 * time.Second
	DefaultCacheTTL         = 10 * time.Minute
	DefaultMaxPlaylistBytes = 16 << 20
	DefaultTMDBBaseURL      = "https://api.themoviedb.org/3"
	DefaultTMDBImageBaseURL = "https://image.tmdb.org/t/p"
	DefaultTMDBLanguage     = "en-US"
)

// DefaultEmbedProviders are the iframe URL templates used when none are
// configured. {type} is "movie" or "tv", {id} the metadata id.
var DefaultEmbedProviders = []string{
	"https://vidsrc.dev/embed/{type}/{id}",
	"https://player.autoembed.cc/embed/{type}/{id}",
	"https://multiembed.mov/?video_id={id}&tmdb=1",
}

// Config holds application configuration.
type Config struct {
	ServerPort string
	LogLevel   string

	// Playlist fetcher.
	UserAgent        string
	Timeout          time.Duration
	MaxPlaylistBytes int64
	IPTVPlaylistURL  string

	// AllowPlaylistOverride lets /api/iptv and /live fetch a caller-supplied
	// ?url=. Off by default so only IPTVPlaylistURL is ever fetched.
	AllowPlaylistOverride bool

	// Metadata API.
	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBImageBaseURL string
	TMDBLanguage     string

	EmbedProviders []string

	// Optional backends; empty disables them.
	RedisURL    string
	DatabaseURL string
	CacheTTL    time.Duration
}

// Load builds config from environment variables.
// If TMDB_API_KEY is not set, Load tries .env.local and .env first.
func Load() (*Config, error) {
	if os.Getenv("TMDB_API_KEY") == "" {
		loadEnvFiles()
	}
	c := &Config{
		ServerPort:       os.Getenv("SERVER_PORT"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		UserAgent:        os.Getenv("FETCHER_USER_AGENT"),
		IPTVPlaylistURL:  os.Getenv("IPTV_PLAYLIST_URL"),
		TMDBAPIKey:       os.Getenv("TMDB_API_KEY"),
		TMDBBaseURL:      os.Getenv("TMDB_BASE_URL"),
		TMDBImageBaseURL: os.Getenv("TMDB_IMAGE_BASE_URL"),
		TMDBLanguage:     os.Getenv("TMDB_LANGUAGE"),
		RedisURL:         os.Getenv("REDIS_URL"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
	}
	if s := os.Getenv("FETCHER_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.Timeout = d
		}
	}
	if s := os.Getenv("CACHE_TTL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.CacheTTL = d
		}
	}
	if s := os.Getenv("MAX_PLAYLIST_BYTES"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			c.MaxPlaylistBytes = n
		}
	}
	if s := os.Getenv("ALLOW_PLAYLIST_OVERRIDE"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			c.AllowPlaylistOverride = b
		}
	}
	if s := os.Getenv("EMBED_PROVIDERS"); s != "" {
		c.EmbedProviders = splitList(s)
	}
	c.applyDefaults()
	if c.TMDBAPIKey == "" {
		return nil, ErrMissingTMDBKey
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = DefaultServerPort
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MaxPlaylistBytes <= 0 {
		c.MaxPlaylistBytes = DefaultMaxPlaylistBytes
	}
	if c.TMDBBaseURL == "" {
		c.TMDBBaseURL = DefaultTMDBBaseURL
	}
	if c.TMDBImageBaseURL == "" {
		c.TMDBImageBaseURL = DefaultTMDBImageBaseURL
	}
	if c.TMDBLanguage == "" {
		c.TMDBLanguage = DefaultTMDBLanguage
	}
	if len(c.EmbedProviders) == 0 {
		c.EmbedProviders = append([]string(nil), DefaultEmbedProviders...)
	}
}

// FetchOptions returns the playlist download settings.
func (c *Config) FetchOptions() fetcher.Options {
	return fetcher.Options{
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout,
		MaxBytes:  c.MaxPlaylistBytes,
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
