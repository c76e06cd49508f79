// cmd/artkeyd/main.go
// Package main implements the entry point for the ArtKey service.
// It initializes all components and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artful-experience/artkey-go/internal/artkey"
	"github.com/artful-experience/artkey-go/internal/auth"
	"github.com/artful-experience/artkey-go/internal/config"
	"github.com/artful-experience/artkey-go/internal/event"
	"github.com/artful-experience/artkey-go/internal/media"
	"github.com/artful-experience/artkey-go/internal/orders"
	"github.com/artful-experience/artkey-go/internal/schema"
	"github.com/artful-experience/artkey-go/internal/server"
	"github.com/artful-experience/artkey-go/internal/share"
	"github.com/artful-experience/artkey-go/internal/storage"
	"github.com/artful-experience/artkey-go/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	_, err = telemetry.InitTracer("artkey-service")
	if err != nil {
		logger.Error("failed to initialize OpenTelemetry tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.ShutdownTracer(ctx)
	}()

	// Storage backend: PostgreSQL when a DSN is configured, otherwise the
	// in-memory store for development and testing.
	var store storage.Store
	if cfg.DatabaseDSN != "" {
		store, err = storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			logger.Error("failed to initialize postgres storage", "error", err)
			os.Exit(1)
		}
	} else {
		store = storage.NewMemory()
	}

	pub := event.NewPublisherFromEnv()
	defer pub.Close()

	validator, err := schema.NewValidator()
	if err != nil {
		logger.Error("failed to initialize schema validator", "error", err)
		os.Exit(1)
	}

	var ordersClient *orders.Client
	if cfg.OrdersURL != "" {
		ordersClient = orders.New(cfg.OrdersURL)
	}

	svc := artkey.NewService(store, pub, validator, ordersClient, cfg.StoreTimeout)
	builder := share.NewBuilder(cfg.PublicBaseURL, cfg.QRRendererURL)

	var authClient *auth.Client
	if cfg.JWTIssuer != "" {
		authClient = auth.NewClient(fmt.Sprintf("%s/.well-known/jwks.json", cfg.JWTIssuer))
	}

	var mediaClient *media.S3Client
	if cfg.S3Endpoint != "" && cfg.S3Bucket != "" {
		mediaClient, err = media.NewS3Client(cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			logger.Error("failed to initialize S3 client", "error", err)
			os.Exit(1)
		}
	}

	mux := server.NewMux(svc, builder, authClient, mediaClient, cfg.JWTIssuer, cfg.JWTAudience, cfg.MaxMediaSize, cfg.AllowedMimeTypes, cfg.CORSAllowedOrigins)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env, "base_url", cfg.PublicBaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	if postgresStore, ok := store.(interface{ Close() }); ok {
		postgresStore.Close()
	}

	logger.Info("server exited")
}
