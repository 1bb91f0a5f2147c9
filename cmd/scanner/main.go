package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/user/listing-sentinel/internal/adapter/api"
	"github.com/user/listing-sentinel/internal/adapter/audit"
	"github.com/user/listing-sentinel/internal/adapter/listings"
	"github.com/user/listing-sentinel/internal/adapter/metrics"
	"github.com/user/listing-sentinel/internal/adapter/notifier"
	"github.com/user/listing-sentinel/internal/adapter/pii"
	"github.com/user/listing-sentinel/internal/adapter/repository/postgres"
	"github.com/user/listing-sentinel/internal/domain"
	"github.com/user/listing-sentinel/internal/pkg/config"
	"github.com/user/listing-sentinel/internal/pkg/logger"
	"github.com/user/listing-sentinel/internal/usecase"
)

const retentionSweepInterval = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting listing scanner")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopChan
		log.Info("shutdown signal received, stopping scanner...")
		cancel()
	}()

	// Connect to PostgreSQL.
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("failed to bootstrap schema", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	// Connect to Redis.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	// Metrics registry and ops server.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	scanMetrics := metrics.NewScanMetrics(registry)

	opsServer := &http.Server{Addr: cfg.OpsServerAddr, Handler: api.NewRouter(registry)}
	go func() {
		log.Info("ops server listening", "addr", cfg.OpsServerAddr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("ops server failed", "error", err)
		}
	}()

	// Stores.
	institutionStore := postgres.NewInstitutionStore(db, log)
	addressStore := postgres.NewAddressStore(db, log)
	scanJobStore := postgres.NewScanJobStore(db, log)
	matchStore := postgres.NewMatchStore(db, log)
	scheduleStore := postgres.NewScheduleStore(db, log)

	// Listings source, with contact details scrubbed at the source.
	redactor := pii.NewRedactor(cfg.RedactContactFields, log)
	rentcast := listings.NewRentCastClient(listings.ClientConfig{
		BaseURL:        cfg.RentCastBaseURL,
		APIKey:         cfg.RentCastAPIKey,
		Timeout:        cfg.RentCastTimeout,
		RetryCount:     cfg.RentCastRetryCount,
		RetryWait:      cfg.RentCastRetryWait,
		RequestsPerSec: cfg.RentCastRateLimit,
	}, redactor, log)

	// Alert fan-out: Redis Stream always, webhook when configured.
	publishers := []domain.AlertPublisher{
		notifier.NewRedisPublisher(redisClient, cfg.AlertStreamKey, log),
	}
	if cfg.AlertWebhookURL != "" {
		publishers = append(publishers, notifier.NewWebhookPublisher(
			cfg.AlertWebhookURL, cfg.AlertWebhookTimeout, cfg.AlertWebhookRetries, log))
	}
	publisher := notifier.NewComposite(publishers...)

	// Pipeline.
	auditSink := audit.NewSlogSink(log)
	engine := usecase.NewMatchEngine(addressStore, matchStore, rentcast, publisher, log, scanMetrics)
	orchestrator := usecase.NewScanOrchestrator(scanJobStore, engine, institutionStore, log, scanMetrics)
	scheduler := usecase.NewScanScheduler(
		scheduleStore, institutionStore, addressStore, orchestrator,
		auditSink, log, scanMetrics, cfg.ScanMaxConcurrency,
	)

	ticker := time.NewTicker(cfg.ScanTickInterval)
	defer ticker.Stop()

	lastSweep := time.Now()
	log.Info("scanner started", "tick_interval", cfg.ScanTickInterval.String())

Loop:
	for {
		select {
		case <-ticker.C:
			if err := scheduler.Tick(ctx, time.Now().UTC()); err != nil {
				log.Error("scheduler tick failed", "error", err)
			}
			if time.Since(lastSweep) >= retentionSweepInterval {
				sweepMatches(ctx, matchStore, scanMetrics, cfg.MatchRetention, log)
				lastSweep = time.Now()
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down scanner loop")
			break Loop
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("ops server shutdown failed", "error", err)
	}

	log.Info("scanner shut down gracefully")
}

// sweepMatches removes matches older than the retention window.
func sweepMatches(ctx context.Context, matches domain.MatchStore, m *metrics.ScanMetrics, retention time.Duration, log *slog.Logger) {
	adminCtx := domain.WithTenant(ctx, domain.TenantContext{IsPlatformAdmin: true})
	cutoff := time.Now().UTC().Add(-retention)
	purged, err := matches.PurgeOlderThan(adminCtx, cutoff)
	if err != nil {
		log.Error("match retention sweep failed", "error", err)
		return
	}
	if purged > 0 {
		m.MatchesPurged.Add(float64(purged))
		log.Info("purged expired matches", "count", purged, "cutoff", cutoff.Format(time.RFC3339))
	}
}
