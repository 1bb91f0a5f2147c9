package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresURL string `env:"POSTGRES_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR,required"`

	// Scheduler tick. The external trigger invokes the scheduler once per
	// interval; the cron schedule decides whether a tick actually fires.
	ScanTickInterval   time.Duration `env:"SCAN_TICK_INTERVAL" envDefault:"1m"`
	ScanMaxConcurrency int           `env:"SCAN_MAX_CONCURRENCY" envDefault:"4"`

	// RentCast listings source call policy.
	RentCastBaseURL    string        `env:"RENTCAST_BASE_URL" envDefault:"https://api.rentcast.io/v1"`
	RentCastAPIKey     string        `env:"RENTCAST_API_KEY,required"`
	RentCastTimeout    time.Duration `env:"RENTCAST_TIMEOUT" envDefault:"30s"`
	RentCastRetryCount int           `env:"RENTCAST_RETRY_COUNT" envDefault:"3"`
	RentCastRetryWait  time.Duration `env:"RENTCAST_RETRY_WAIT" envDefault:"2s"`
	RentCastRateLimit  float64       `env:"RENTCAST_RATE_LIMIT_RPS" envDefault:"1"`

	// Contact fields scrubbed from listing payloads at the source.
	RedactContactFields []string `env:"REDACT_CONTACT_FIELDS" envSeparator:"," envDefault:"agentEmail,officeEmail"`

	// Alert fan-out.
	AlertStreamKey      string        `env:"ALERT_STREAM_KEY" envDefault:"listing_matches"`
	AlertWebhookURL     string        `env:"ALERT_WEBHOOK_URL"` // optional; empty disables the webhook leg
	AlertWebhookTimeout time.Duration `env:"ALERT_WEBHOOK_TIMEOUT" envDefault:"10s"`
	AlertWebhookRetries int           `env:"ALERT_WEBHOOK_RETRIES" envDefault:"2"`

	// Match retention sweep.
	MatchRetention time.Duration `env:"MATCH_RETENTION" envDefault:"2160h"` // 90 days

	OpsServerAddr string `env:"OPS_SERVER_ADDR" envDefault:":8080"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
