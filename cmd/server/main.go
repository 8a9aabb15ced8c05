package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/listmonk-relay/internal/api"
	"github.com/ignite/listmonk-relay/internal/config"
	"github.com/ignite/listmonk-relay/internal/listmonk"
	"github.com/ignite/listmonk-relay/internal/mailersend"
	"github.com/ignite/listmonk-relay/internal/pkg/logger"
	"github.com/ignite/listmonk-relay/internal/relay"
	"github.com/ignite/listmonk-relay/internal/repository/postgres"
	"github.com/ignite/listmonk-relay/internal/ses"
	"github.com/ignite/listmonk-relay/internal/storage"
	"github.com/ignite/listmonk-relay/internal/worker"
)

// limiterName keys the shared Redis window; replicas sending through the
// same provider account must agree on it.
const limiterName = "provider-bulk"

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, known := logger.ParseLevel(cfg.Log.Level)
	logger.SetLevel(level)
	logger.SetRedactPII(cfg.Log.Redact())
	if !known {
		logger.Warn("unknown log level, using info", "level", cfg.Log.Level)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender, err := newSender(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s transport: %v", cfg.Provider, err)
	}

	// Redis is optional: without it each replica keeps its own window.
	var redisClient *redis.Client
	var limiter worker.RateLimiter = worker.NewWindowRateLimiter(cfg.Dispatch.RequestsPerMinute)
	if cfg.Redis.Enabled() {
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		shared, client, err := worker.NewRedisRateLimiterFromURL(pingCtx, cfg.Redis.URL, limiterName, cfg.Dispatch.RequestsPerMinute)
		pingCancel()
		if err != nil {
			logger.Warn("redis unavailable, using in-process rate limiter", "error", err)
		} else {
			redisClient = client
			limiter = shared
			logger.Info("shared rate limiter enabled", "requests_per_minute", cfg.Dispatch.RequestsPerMinute)
		}
	}

	var archive worker.ChunkArchive
	if cfg.Archive.Enabled {
		s3Archive, err := storage.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to initialize chunk archive: %v", err)
		}
		archive = s3Archive
		logger.Info("rejected chunks will be archived", "bucket", cfg.Archive.S3Bucket, "prefix", cfg.Archive.Prefix)
	}

	var journal relay.EventJournal
	var dbPinger api.Pinger
	if cfg.Database.Enabled() {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		eventJournal := postgres.NewEventJournal(db)
		if err := eventJournal.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare event journal: %v", err)
		}
		journal = eventJournal
		dbPinger = eventJournal
		logger.Info("delivery event journal enabled")
	}

	buffer := worker.NewOutgoingBuffer()
	dispatcher := worker.NewBulkDispatcher(sender, limiter, archive, cfg.Dispatch.AcquireTimeout())
	scheduler, err := worker.NewDispatchScheduler(buffer, dispatcher,
		cfg.Dispatch.OutgoingCron, cfg.Dispatch.BulkSize, cfg.Dispatch.FlushOnShutdown)
	if err != nil {
		log.Fatalf("Failed to create dispatch scheduler: %v", err)
	}

	listmonkClient := listmonk.NewClient(cfg.Listmonk)
	handlers := api.NewHandlers(
		relay.NewIntake(buffer),
		relay.NewEventRouter(listmonkClient, journal),
		cfg.Webhook,
	)
	health := api.NewHealthChecker(buffer, scheduler, dbPinger, redisClient)
	server := api.NewServer(cfg.Server, handlers, health)

	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start dispatch scheduler: %v", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr(), "provider", cfg.Provider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// A final flush may have to wait out the rate limiter.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.Dispatch.AcquireTimeout()+cfg.MailerSend.Timeout())
	defer flushCancel()
	if err := scheduler.Stop(flushCtx); err != nil {
		logger.Error("dispatch scheduler shutdown error", "error", err)
	}

	cancel()
	if redisClient != nil {
		redisClient.Close()
	}
	logger.Info("server stopped")
}

func newSender(ctx context.Context, cfg *config.Config) (worker.BatchSender, error) {
	if cfg.Provider == config.ProviderSES {
		return ses.NewSender(ctx, cfg.SES)
	}
	return mailersend.NewClient(cfg.MailerSend), nil
}
