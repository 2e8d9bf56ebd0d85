package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avoitenko/liftlog/internal/api"
	"avoitenko/liftlog/internal/cache"
	"avoitenko/liftlog/internal/config"
	"avoitenko/liftlog/internal/service"
	"avoitenko/liftlog/internal/store"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting LiftLog server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- File store backend ---
	fileStore, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize %q storage backend: %v", cfg.Storage.Backend, err)
	}

	// The GitHub credential is checked once against the "who am I" endpoint
	// before any data call trusts it.
	if validator, ok := fileStore.(store.TokenValidator); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := validator.ValidateToken(ctx)
		cancel()
		if err != nil {
			log.Fatalf("FATAL: Credential validation failed: %v", err)
		}
		log.Println("Credential validated.")
	}

	// --- Local cache ---
	appCache := cache.New(fileStore)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		err := appCache.Initialize(ctx)
		cancel()
		if err != nil {
			log.Fatalf("FATAL: Cache initialization failed: %v", err)
		}
	}
	log.Println("Cache initialized.")

	// --- Services ---
	mutations := service.NewMutationService(fileStore, appCache, time.Now)
	stats := service.NewStatsService(fileStore, appCache)

	// --- Router ---
	router := gin.Default()
	api.SetupRoutes(router, cfg, appCache, mutations, stats)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		log.Printf("Listening on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Server error: %v", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("ERROR: Forced shutdown: %v", err)
	}
	log.Println("Server exited.")
}

// buildStore selects the file-store backend from configuration.
func buildStore(cfg config.Config) (store.FileStore, error) {
	switch cfg.Storage.Backend {
	case "github":
		if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" || cfg.GitHub.Token == "" {
			return nil, errors.New("github backend requires owner, repo and token")
		}
		return store.NewGitHubStore(cfg.GitHub, store.WithAuthFailedHook(func() {
			log.Println("ERROR: GitHub token rejected; clear GITHUB_TOKEN and supply a fresh one")
		})), nil
	case "s3":
		return store.NewS3Store(cfg.S3)
	case "dev":
		return store.NewDevStore(cfg.Dev), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
