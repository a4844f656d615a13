package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/adapter/jobcache"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/adapter/repo"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/generation"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/http/handlers"
	httpapi "github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/http/httpapi"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/infra"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music/mureka"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music/suno"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/registry"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/storage"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/ws"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	if err := repo.EnsureSchema(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	// Redis backs the idempotency keys and the snapshot cache; the service
	// runs without it when no address is configured.
	var cache *jobcache.Store
	if cfg.RedisAddr != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		cache = jobcache.New(rdb)
	}

	store := buildStore(ctx, cfg, logger)

	adapters := map[domain.Service]music.Adapter{}
	if cfg.SunoAPIKey != "" {
		adapters[domain.ServiceSuno] = suno.NewClient(suno.Options{
			APIKey:         cfg.SunoAPIKey,
			BaseURL:        cfg.SunoBaseURL,
			Model:          cfg.SunoModel,
			Logger:         &logger,
			RequestTimeout: cfg.RequestTimeout,
		})
	}
	if cfg.MurekaAPIKey != "" {
		adapters[domain.ServiceMureka] = mureka.NewClient(mureka.Options{
			APIKey:         cfg.MurekaAPIKey,
			BaseURL:        cfg.MurekaBaseURL,
			Model:          cfg.MurekaModel,
			Logger:         &logger,
			RequestTimeout: cfg.RequestTimeout,
		})
	}

	reg := registry.New()
	jobRepo := repo.NewJobRepository(dbpool)
	gen := generation.New(generation.Config{
		PollInterval:   cfg.PollInterval,
		PollTimeout:    cfg.PollTimeout,
		RequestTimeout: cfg.RequestTimeout,
	}, generation.Deps{
		Adapters: adapters,
		Registry: reg,
		Repo:     jobRepo,
		Cache:    cache,
		Notifier: generation.NewLogNotifier(logger),
		Archiver: storage.NewArchiver(store, nil),
		Logger:   logger,
	})
	defer gen.Close()

	// Pick up jobs that were mid-flight when the previous process died.
	if err := gen.Resume(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to resume persisted jobs")
	}

	hub := ws.NewHub(reg, logger, nil)
	defer hub.Close()

	app := handlers.NewApp(logger, gen, reg, store)
	router := httpapi.NewRouter(app, hub, httpapi.Options{
		Logger:             logger,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildStore picks MinIO when configured, the local filesystem otherwise.
func buildStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) storage.Store {
	if cfg.MinioEndpoint != "" {
		store, err := storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect object storage")
		}
		return store
	}
	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init file storage")
	}
	return store
}
