// @title SWAPI Voting API
// @version 1.0.0
// @description Imports Star Wars characters, films and starships from SWAPI into a local database and serves them with pagination and search.
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"swapiapi/docs"
	"swapiapi/internal/catalog"
	"swapiapi/internal/config"
	"swapiapi/internal/ingest"
	"swapiapi/internal/logging"
	"swapiapi/internal/platform/swapi"
	"swapiapi/internal/server"
	"swapiapi/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig())
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().Fields(cfg.LogFields()).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	logger.Info().Str("dialect", string(db.Dialect)).Msg("database connection OK")

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx, db, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	docs.SwaggerInfo.Title = cfg.AppName
	docs.SwaggerInfo.Version = cfg.AppVersion

	repo := store.NewCatalogRepo(db)
	client := swapi.NewClient(swapi.Options{
		BaseURL:    cfg.SwapiBaseURL,
		VerifySSL:  cfg.VerifySwapiSSL,
		Timeout:    cfg.SwapiTimeout,
		RPS:        cfg.SwapiRPS,
		MaxRetries: cfg.SwapiMaxRetries,
		UserAgent:  cfg.AppName + "/" + cfg.AppVersion,
	})

	srv := server.New(server.Deps{
		Config:   cfg,
		Logger:   logger,
		Catalog:  catalog.NewService(repo, catalog.Config{DefaultPageSize: cfg.DefaultPageSize, MaxPageSize: cfg.MaxPageSize}),
		Importer: ingest.NewService(client, repo, ingest.NewRunRepo(db), ingest.Config{Workers: cfg.ImportWorkers}, logger),
		Store:    repo,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
