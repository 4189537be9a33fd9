/*
Package main is the entry point for the chatwave server.

It loads configuration, initializes the global logger, opens the store, builds the realtime hub
and the HTTP server, and shuts everything down in order on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"chatwave/internal/app/chat"
	"chatwave/internal/app/db"
	"chatwave/internal/app/presence"
	"chatwave/internal/app/realtime"
	"chatwave/internal/app/storage"
	"chatwave/internal/app/user"
	"chatwave/internal/configs"
	"chatwave/internal/handler"
	"chatwave/internal/pkg/limiter"
	"chatwave/internal/pkg/logx"
	"chatwave/internal/pkg/pow"
)

// store is what both the chat service and the user handlers need from persistence.
type store interface {
	chat.Store
	user.Repository
}

func openStore(ctx context.Context, cfg *configs.AppConfig) (store, func(), error) {
	if cfg.StoreDriver == configs.StoreMemory {
		logx.Warn("Using the in-memory store. Data is lost on restart.")
		return db.NewMemoryStore(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}

	return db.NewPostgresStore(pool), pool.Close, nil
}

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("pow_difficulty", cfg.PowDifficulty).
		Str("store", cfg.StoreDriver).
		Bool("avatar_storage", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open store")
	}
	defer closeStore()

	var avatars storage.StorageService
	if cfg.StorageEnabled() {
		avatars, err = storage.NewStorageService(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:     cfg.S3PublicBaseURL,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize avatar storage")
		}
	}

	chats := chat.NewService(st, st)
	hub := realtime.NewHub(presence.NewRegistry(), chats)

	deps := &handler.AppDeps{
		Hub:            hub,
		Chats:          chats,
		Users:          st,
		Config:         cfg,
		StorageService: avatars,
		Pow:            pow.NewManager(cfg.PowDifficulty),
		AuthLimiter:    limiter.NewIPRateLimiter(rate.Limit(handler.AuthRate), handler.AuthBurst),
		ConnectLimiter: limiter.NewIPRateLimiter(rate.Limit(handler.ConnectRate), handler.ConnectBurst),
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("chatwave server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "HTTP server forced to shutdown")
	}

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Realtime hub did not drain in time")
	}

	deps.Pow.Stop()
	deps.AuthLimiter.Stop()
	deps.ConnectLimiter.Stop()

	logx.Info("Server gracefully stopped.")
}
