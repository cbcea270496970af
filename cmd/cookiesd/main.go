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

	"github.com/owenwright/cookies/internal/backup"
	"github.com/owenwright/cookies/internal/config"
	"github.com/owenwright/cookies/internal/database"
	"github.com/owenwright/cookies/internal/kv"
	"github.com/owenwright/cookies/internal/logging"
	"github.com/owenwright/cookies/internal/server"
	"github.com/owenwright/cookies/internal/shield"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	kvStore := kv.Open(cfg.StatePath)
	gateway := shield.NewLogGateway(logger)

	srv, err := server.New(server.Config{
		DB:      db,
		KV:      kvStore,
		Gateway: gateway,
		BackupCfg: backup.Config{
			S3: backup.S3Config{
				Endpoint:  cfg.BackupEndpoint,
				Bucket:    cfg.BackupBucket,
				Region:    cfg.BackupRegion,
				AccessKey: cfg.BackupAccessKey,
				SecretKey: cfg.BackupSecretKey,
			},
			DBPath:     cfg.DBPath,
			Passphrase: cfg.BackupPassphrase,
			Hour:       cfg.BackupHour,
			Keep:       cfg.BackupKeep,
		},
		WarningOffset: time.Duration(cfg.WarningOffsetMinutes) * time.Minute,
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.Refresher().Start(ctx)
	defer srv.Refresher().Stop()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Hourly cleanup of expired sessions and stale rate limit entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Warn("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions deleted", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("cookiesd running at http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
