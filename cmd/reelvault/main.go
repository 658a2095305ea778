package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/voyagen/reelvault/internal/cache"
	"github.com/voyagen/reelvault/internal/config"
	"github.com/voyagen/reelvault/internal/log"
	"github.com/voyagen/reelvault/internal/server"
	"github.com/voyagen/reelvault/internal/service"
	"github.com/voyagen/reelvault/internal/store"
	"github.com/voyagen/reelvault/internal/tmdb"
	"github.com/voyagen/reelvault/internal/web"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use environment variables")
	flag.Parse()

	log.Configure(log.Config{})
	logger := log.WithComponent("main")

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	log.Configure(log.Config{Level: cfg.LogLevel})
	logger = log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to Redis if REDIS_URL is configured.
	var rds *cache.Redis
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rds.Close()

		if err := rds.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("redis ping")
		}
		logger.Info().Msg("redis connected (caching enabled)")
	} else {
		logger.Info().Msg("redis disabled (REDIS_URL not set)")
	}

	appStore, closeStore := openStore(ctx, cfg, rds)
	defer closeStore()

	meta := tmdb.NewClient(tmdb.Config{
		APIKey:       cfg.TMDBAPIKey,
		BaseURL:      cfg.TMDBBaseURL,
		ImageBaseURL: cfg.TMDBImageBaseURL,
		Language:     cfg.TMDBLanguage,
		Timeout:      cfg.Timeout,
	})
	catalog := service.NewCatalog(meta, rds, cfg.CacheTTL, cfg.FetchOptions())

	renderer, err := web.NewRenderer(meta.PosterURL, web.Providers(cfg.EmbedProviders))
	if err != nil {
		logger.Fatal().Err(err).Msg("templates")
	}

	if rds != nil {
		go service.RunRefreshWorker(ctx, rds, appStore, cfg.FetchOptions())
	}

	srv := server.New(catalog, appStore, rds, renderer, cfg)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server")
	}
}

// openStore connects to Postgres and applies migrations when DATABASE_URL
// is set, else falls back to an in-process store. Reads go through Redis
// when rds is non-nil.
func openStore(ctx context.Context, cfg *config.Config, rds *cache.Redis) (store.Store, func()) {
	logger := log.WithComponent("main")
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not set; playlist sources kept in memory")
		return store.NewMemory(), func() {}
	}

	if err := store.EnsureTrigram(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("pg_trgm")
	}
	if err := store.RunMigrations(cfg.DatabaseURL, "file://"+migrationsDir()); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db")
	}
	if rds != nil {
		return store.NewCachedStore(pg, rds), pg.Close
	}
	return pg, pg.Close
}

// migrationsDir prefers ./migrations, then one next to the executable.
func migrationsDir() string {
	dir, err := filepath.Abs("migrations")
	if err != nil {
		dir = "migrations"
	}
	if _, err := os.Stat(dir); err != nil {
		if exe, e := os.Executable(); e == nil {
			dir = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	return dir
}
