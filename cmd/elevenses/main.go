package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/elevenses/internal/assist"
	"github.com/dukerupert/elevenses/internal/backup"
	"github.com/dukerupert/elevenses/internal/database"
	"github.com/dukerupert/elevenses/internal/email"
	"github.com/dukerupert/elevenses/internal/handler"
	"github.com/dukerupert/elevenses/internal/logging"
	"github.com/dukerupert/elevenses/internal/mealplan"
	"github.com/dukerupert/elevenses/internal/push"
	"github.com/dukerupert/elevenses/internal/server"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	port := envOr("ELEVENSES_PORT", "8080")
	dbPath := envOr("ELEVENSES_DB_PATH", "elevenses.db")
	baseURL := envOr("ELEVENSES_BASE_URL", "http://localhost:"+port)

	logger := logging.Setup(os.Getenv("ELEVENSES_LOG_LEVEL"), os.Getenv("ELEVENSES_LOG_FORMAT"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The Gemini client backs schedule parsing and meal matching. Without a
	// key those endpoints degrade instead of failing startup.
	var parser handler.WeekParser
	var ranker mealplan.Ranker
	if apiKey := os.Getenv("ELEVENSES_GEMINI_API_KEY"); apiKey != "" {
		assistClient, err := assist.New(ctx, apiKey, logger.With("component", "assist"))
		if err != nil {
			logger.Warn("assist client unavailable", "error", err)
		} else {
			defer assistClient.Close()
			parser = assistClient
			ranker = assistClient
		}
	} else {
		logger.Info("ELEVENSES_GEMINI_API_KEY not set, schedule parsing and meal matching disabled")
	}

	emailClient := email.NewClient(
		os.Getenv("ELEVENSES_POSTMARK_TOKEN"),
		envOr("ELEVENSES_FROM_EMAIL", "elevenses@localhost"),
		baseURL,
	)
	if !emailClient.Configured() {
		logger.Warn("ELEVENSES_POSTMARK_TOKEN not set, auth code emails will fail")
	}

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("ELEVENSES_BACKUP_S3_ENDPOINT"),
			Bucket:    os.Getenv("ELEVENSES_BACKUP_S3_BUCKET"),
			Region:    envOr("ELEVENSES_BACKUP_S3_REGION", "auto"),
			AccessKey: os.Getenv("ELEVENSES_BACKUP_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("ELEVENSES_BACKUP_S3_SECRET_KEY"),
		},
		DBPath: dbPath,
	}

	pushCfg := push.Config{
		VAPIDPublicKey:  os.Getenv("ELEVENSES_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("ELEVENSES_VAPID_PRIVATE_KEY"),
	}

	srv := server.New(db, emailClient, parser, ranker, backupCfg, pushCfg, logger)

	// Background loops
	srv.BackupManager().Start(ctx)
	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
	}
	go cleanupLoop(ctx, srv, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("elevenses listening", "addr", "http://localhost:"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	srv.BackupManager().Stop()
	if sched := srv.PushScheduler(); sched != nil {
		sched.Stop()
	}
	srv.Hub().Close()
}

// sentNotificationTTL bounds the dedup log for delivered reminders. Rows
// older than this can never match a future reminder window again.
const sentNotificationTTL = 30 * 24 * time.Hour

// cleanupLoop expires sessions, auth codes, notification dedup rows, and
// rate limiter entries once an hour.
func cleanupLoop(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Error("session cleanup", "error", err)
			} else if n > 0 {
				logger.Debug("expired sessions removed", "count", n)
			}
			if n, err := srv.MagicLinkStore().DeleteExpired(); err != nil {
				logger.Error("auth code cleanup", "error", err)
			} else if n > 0 {
				logger.Debug("expired auth codes removed", "count", n)
			}
			if err := srv.PushStore().CleanupSent(time.Now().Add(-sentNotificationTTL)); err != nil {
				logger.Error("sent notification cleanup", "error", err)
			}
			srv.RateLimiter().Sweep()
		}
	}
}
