package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tracklight/agent-core/internal/blobstore"
	"github.com/tracklight/agent-core/internal/config"
	"github.com/tracklight/agent-core/internal/database"
	"github.com/tracklight/agent-core/internal/handlers"
	"github.com/tracklight/agent-core/internal/repositories"
	"github.com/tracklight/agent-core/internal/services"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	deviceRepo := repositories.NewPostgresDeviceRepository(postgresPool)
	pairingRepo := repositories.NewPostgresPairingCodeRepository(postgresPool)
	entryRepo := repositories.NewPostgresTimeEntryRepository(postgresPool)
	activityRepo := repositories.NewPostgresActivityRepository(postgresPool)
	screenshotRepo := repositories.NewPostgresScreenshotRepository(postgresPool)
	projectRepo := repositories.NewPostgresProjectRepository(postgresPool)
	dedupRepo := repositories.NewRedisBatchDedupRepository(redisClient)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)

	// Services
	tokenService := services.NewTokenService(cfg.TokenSecret, cfg.TokenTTL)
	pairingService := services.NewPairingService(
		pairingRepo, deviceRepo, presenceRepo, tokenService,
		cfg.PairingCodeTTL, cfg.DeviceSecretLength,
	)
	timerService := services.NewTimerService(entryRepo, projectRepo, cfg.TimerStartPolicy)
	ingestService := services.NewIngestService(
		deviceRepo, entryRepo, activityRepo, dedupRepo, presenceRepo, timerService,
	)
	screenshotService := services.NewScreenshotService(
		screenshotRepo, entryRepo,
		blobstore.NewPresigner(cfg.BlobEndpoint, cfg.BlobSigningSecret),
		blobstore.NewClient(60*time.Second),
		cfg.ScreenshotMaxBytes, cfg.UploadURLTTL,
	)

	router := handlers.NewRouter(handlers.RouterDeps{
		Tokens:      tokenService,
		Pairing:     handlers.NewPairingHandler(pairingService),
		Ingest:      handlers.NewIngestHandler(ingestService),
		Screenshots: handlers.NewScreenshotHandler(screenshotService, cfg.ScreenshotMaxBytes),
		Timer:       handlers.NewTimerHandler(timerService),
		Projects:    handlers.NewProjectHandler(timerService),
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
