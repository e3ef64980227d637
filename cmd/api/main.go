package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"spriteforge/internal/adapter/repo"
	"spriteforge/internal/artifact"
	"spriteforge/internal/genart"
	"spriteforge/internal/http/handlers"
	"spriteforge/internal/http/httpapi"
	"spriteforge/internal/infra"
	"spriteforge/internal/providers/gemini"
	"spriteforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	refineClient := gemini.NewClient(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		ImageModel: cfg.GeminiImageModel,
		BaseURL:    cfg.GeminiBaseURL,
		Logger:     &logger,
	})
	refiner := genart.NewRefiner(refineClient, logger)

	orchestrator := genart.NewOrchestrator(genart.OrchestratorOptions{
		Config:  cfg,
		Refiner: refiner,
		Logger:  logger,
	})
	sheets := genart.NewSpritesheetGenerator(cfg, logger, genart.DefaultPollingFactory(cfg, &logger))

	if !cfg.HasReplicate() && !cfg.HasGemini() {
		logger.Warn().Msg("no platform provider credential configured; only own-key requests will succeed")
	}

	app := &handlers.App{
		Logger:      logger,
		Generations: orchestrator,
		Sheets:      sheets,
		Artifacts:   artifact.NewPipeline(fileStore, logger),
		Assets:      repo.NewAssetRepository(pool),
		Credits:     repo.NewCreditLedger(pool),
		Verifier:    repo.NewTokenVerifier(pool),
		Cost:        cfg.GenerationCost,
	}

	router := httpapi.NewRouter(app, fileStore.BasePath())
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
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
