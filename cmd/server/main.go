package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/newsletter-service/internal/api"
	"github.com/Priya8975/newsletter-service/internal/config"
	"github.com/Priya8975/newsletter-service/internal/engine"
	"github.com/Priya8975/newsletter-service/internal/newsletter"
	"github.com/Priya8975/newsletter-service/internal/provider"
	"github.com/Priya8975/newsletter-service/internal/provider/brevo"
	"github.com/Priya8975/newsletter-service/internal/store"
	ws "github.com/Priya8975/newsletter-service/internal/websocket"
	"github.com/Priya8975/newsletter-service/internal/worker"
	"github.com/Priya8975/newsletter-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	log.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	log.Info("connected to Redis")
	redisClient := redisStore.Client()

	brevoClient := brevo.NewClient(brevo.Config{
		BaseURL:       cfg.BrevoBaseURL,
		APIKey:        cfg.BrevoAPIKey,
		Sender:        provider.Sender{Name: cfg.SenderName, Email: cfg.SenderEmail},
		FolderID:      cfg.BrevoFolderID,
		Timeout:       cfg.ProviderTimeout,
		RatePerSecond: cfg.BrevoRatePerSec,
	}, log)

	content, err := newsletter.NewContent(cfg.SiteURL)
	if err != nil {
		log.Error("failed to load email templates", "error", err)
		os.Exit(1)
	}
	listIDs := newsletter.ListIDs{PL: cfg.ListIDPolish, EN: cfg.ListIDEnglish}

	// Engine components
	rateLimiter := engine.NewRateLimiter(redisClient, time.Minute, log)
	circuitBreaker := engine.NewCircuitBreaker(redisClient, cfg.CircuitThreshold, cfg.CircuitCooldown, log)
	locker := engine.NewLocker(redisClient, log)
	queue := engine.NewBroadcastQueue(redisClient, log)

	hub := ws.NewHub(cfg.AllowedOrigins, log)
	go hub.Run(ctx)

	service := newsletter.NewService(newsletter.ServiceConfig{
		ListIDs:       listIDs,
		PendingTTL:    cfg.PendingTTL,
		StatsCacheTTL: cfg.StatsCacheTTL,
	}, pgStore, pgStore, brevoClient, brevoClient, content, log).WithStatsCache(redisStore)

	dispatcher := newsletter.NewDispatcher(newsletter.DispatcherConfig{
		ListIDs:       listIDs,
		BatchDelay:    cfg.BatchDelay,
		FallbackDelay: cfg.FallbackDelay,
	}, pgStore, brevoClient, brevoClient, content, newsletter.SleepPacer{}, log).
		WithCampaignGuard(circuitBreaker).
		WithProgress(hub)

	// Broadcast workers
	runner := worker.NewRunner(dispatcher, pgStore, locker, hub, cfg.BroadcastLockTTL, log)
	pool := worker.NewPool(cfg.BroadcastWorkers, runner, log)
	pool.Start(ctx)

	poller := worker.NewPoller(queue, pool, cfg.PollInterval, log)
	go poller.Start(ctx)

	router := api.NewRouter(api.Dependencies{
		Subscriptions: service,
		Articles:      dispatcher,
		Store:         pgStore,
		Queue:         queue,
		Runner:        runner,
		Hub:           hub,
		Guard:         circuitBreaker,
		Limiter:       rateLimiter,
		Health: map[string]api.Pinger{
			"postgres": pgStore,
			"redis":    redisStore,
		},
		WebSocket:      hub.HandleWebSocket,
		SubscribeLimit: cfg.SubscribeLimit,
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // admin send with wait=true blocks for the whole broadcast
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	// Stops the poller and interrupts running broadcasts between batches.
	// The poller must be gone before the pool stops so a claimed job is
	// either running or back in the queue.
	cancel()
	<-poller.Done()
	pool.Stop()

	log.Info("server stopped")
}
