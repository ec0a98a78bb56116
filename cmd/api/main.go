package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"charity/internal/adapter"
	"charity/internal/http/handlers"
	httpapi "charity/internal/http/httpapi"
	"charity/internal/infra"
	"charity/internal/service"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := adapter.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open fund store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close fund store")
		}
	}()

	investing := service.NewInvesting(store, logger.With().Str("component", "investing").Logger())
	app := handlers.NewApp(investing, logger)
	router := httpapi.NewRouter(app, logger, cfg.JWTSecret)

	server := infra.NewHTTPServer(cfg, router)
	if err := server.Run(ctx, logger); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
}
