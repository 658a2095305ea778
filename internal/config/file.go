package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	ServerPort       string   `yaml:"server_port"`
	LogLevel         string   `yaml:"log_level"`
	UserAgent        string   `yaml:"user_agent"`
	Timeout          string   `yaml:"timeout"`
	MaxPlaylistBytes int64    `yaml:"max_playlist_bytes"`
	IPTVPlaylistURL  string   `yaml:"iptv_playlist_url"`
	AllowOverride    bool     `yaml:"allow_playlist_override"`
	TMDBAPIKey       string   `yaml:"tmdb_api_key"`
	TMDBBaseURL      string   `yaml:"tmdb_base_url"`
	TMDBImageBaseURL string   `yaml:"tmdb_image_base_url"`
	TMDBLanguage     string   `yaml:"tmdb_language"`
	EmbedProviders   []string `yaml:"embed_providers"`
	RedisURL         string   `yaml:"redis_url"`
	DatabaseURL      string   `yaml:"database_url"`
	CacheTTL         string   `yaml:"cache_ttl"`
}

// LoadFromFile loads config from a YAML file. tmdb_api_key is required but
// may also come from TMDB_API_KEY so the secret can stay out of the file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	c := &Config{
		ServerPort:       f.ServerPort,
		LogLevel:         f.LogLevel,
		UserAgent:        f.UserAgent,
		MaxPlaylistBytes: f.MaxPlaylistBytes,
		IPTVPlaylistURL:  f.IPTVPlaylistURL,
		TMDBAPIKey:       f.TMDBAPIKey,
		TMDBBaseURL:      f.TMDBBaseURL,
		TMDBImageBaseURL: f.TMDBImageBaseURL,
		TMDBLanguage:     f.TMDBLanguage,
		EmbedProviders:   f.EmbedProviders,
		RedisURL:         f.RedisURL,
		DatabaseURL:      f.DatabaseURL,
	}
	c.AllowPlaylistOverride = f.AllowOverride
	if c.TMDBAPIKey == "" {
		c.TMDBAPIKey = os.Getenv("TMDB_API_KEY")
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			c.Timeout = d
		}
	}
	if f.CacheTTL != "" {
		if d, err := time.ParseDuration(f.CacheTTL); err == nil {
			c.CacheTTL = d
		}
	}
	c.applyDefaults()
	if c.TMDBAPIKey == "" {
		return nil, ErrMissingTMDBKey
	}
	return c, nil
}
