package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecocivic/api/internal/app"
	"ecocivic/api/internal/config"
	"ecocivic/api/internal/identity"
	"ecocivic/api/internal/kv"
	"ecocivic/api/internal/media"
	"ecocivic/api/internal/session"
	"ecocivic/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	ctx := context.Background()

	backend, err := kv.Open(ctx, kv.Options{
		Driver:      cfg.Storage,
		Path:        cfg.DataPath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
	})
	if err != nil {
		logger.Error("storage connection failed", "storage", cfg.Storage, "error", err)
		os.Exit(1)
	}
	dataStore := store.New(backend, store.WithKeyPrefix(cfg.KeyPrefix))
	defer dataStore.Close()

	photos, err := media.New(media.MinIOConfig(cfg.MinIO))
	if err != nil {
		logger.Error("photo storage configuration failed", "error", err)
		os.Exit(1)
	}
	if cfg.MinIO.Endpoint != "" {
		logger.Info("offloading photos to object storage", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
	}

	sessions := session.New()
	accounts := identity.NewService(dataStore, identity.WithPublisher(sessions), identity.WithLogger(logger))
	service := app.New(dataStore, accounts, app.WithMediaStore(photos), app.WithLogger(logger))
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap error (will retry on next restart)", "error", err)
	}
	if err := sessions.Refresh(ctx, accounts); err != nil {
		logger.Warn("session restore failed", "error", err)
	}

	httpServer := app.NewHTTPServer(service, accounts, sessions, cfg.CORSOrigin)
	defer httpServer.Close()
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("EcoCivic API listening", "addr", cfg.Addr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
}
