package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fluxbatch/internal/http/handlers"
	"fluxbatch/internal/http/httpapi"
	"fluxbatch/internal/infra"
	"fluxbatch/internal/pipeline"
	"fluxbatch/internal/profile"
	"fluxbatch/internal/providers/cloudinary"
	"fluxbatch/internal/providers/replicate"
	"fluxbatch/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Stores: Redis when configured, in-memory otherwise.
	var (
		gallery     storage.GalleryStore
		prompts     storage.PromptStore
		credentials storage.CredentialStore
	)
	if cfg.RedisAddr != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		gallery = storage.NewRedisGallery(rdb, cfg.GalleryMaxEntries)
		prompts = storage.NewRedisPrompts(rdb, cfg.PromptMaxEntries)
		credentials = storage.NewRedisCredentials(rdb)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis stores")
	} else {
		gallery = storage.NewMemoryGallery(cfg.GalleryMaxEntries)
		prompts = storage.NewMemoryPrompts(cfg.PromptMaxEntries)
		credentials = storage.NewMemoryCredentials(cfg.ReplicateToken)
		logger.Info().Msg("using in-memory stores")
	}
	if cfg.ReplicateToken != "" && cfg.RedisAddr != "" {
		if err := credentials.SetToken(ctx, cfg.ReplicateToken); err != nil {
			logger.Error().Err(err).Msg("failed to seed credential store")
		}
	}

	uploads := cloudinary.NewUploader(cloudinary.Options{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		BaseURL:   cfg.CloudinaryBaseURL,
		Logger:    &logger,
	})
	predictions := replicate.NewClient(replicate.Options{
		BaseURL: cfg.ReplicateBaseURL,
		Logger:  &logger,
	})

	builder := profile.NewBuilder(profile.NewTemplateLoader(cfg.TemplateDir))
	poller := pipeline.NewPoller(
		pipeline.ReplicateJobs{Client: predictions},
		cfg.PollInterval,
		cfg.PollMaxAttempts,
		logger,
	)
	orch := pipeline.New(pipeline.Options{
		Uploader:    pipeline.CloudinaryUploader{Client: uploads},
		Submitter:   pipeline.ReplicateJobs{Client: predictions},
		Poller:      poller,
		Recorder:    gallery,
		Credentials: credentials,
		Builder:     builder,
		Logger:      logger,
	})
	manager := pipeline.NewManager(orch, logger)

	app := &handlers.App{
		Gallery:     gallery,
		Prompts:     prompts,
		Credentials: credentials,
		Uploads:     uploads,
		Predictions: predictions,
		Batch:       manager,
		Fetch:       &http.Client{Timeout: 2 * time.Minute},
		Logger:      logger,
	}

	router := httpapi.NewRouter(app, cfg)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
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
