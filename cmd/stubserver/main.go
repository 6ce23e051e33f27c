package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/aromahaus/storefront-client/internal/devstub"
	"github.com/aromahaus/storefront-client/pkg/config"
	"github.com/aromahaus/storefront-client/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "stubserver"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "stubserver",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	router := devstub.NewRouter(cfg.Stub, logg)

	addr := ":" + cfg.Stub.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx := logg.WithField(context.Background(), "addr", addr)
	logg.Info(ctx, "stub backend listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "stub backend stopped", err)
		os.Exit(1)
	}
}
