package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	APIPort           int    `env:"API_PORT,default=8080"`
	WorkerMetricsPort int    `env:"WORKER_METRICS_PORT,default=9091"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=8"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=1h"`
	RedisPoolSize     int           `env:"REDIS_POOL_SIZE,default=0"`

	DeliveryLeaseTTL      time.Duration `env:"DELIVERY_LEASE_TTL,default=2m"`
	ReconcileInterval     time.Duration `env:"RECONCILE_INTERVAL,default=30s"`
	StaleInProgressAfter  time.Duration `env:"STALE_IN_PROGRESS_AFTER,default=10m"`
	PendingRepublishAfter time.Duration `env:"PENDING_REPUBLISH_AFTER,default=1m"`
	ChannelSendTimeout    time.Duration `env:"CHANNEL_SEND_TIMEOUT,default=30s"`

	// Live channel integrations; a channel without configuration falls back to a simulated provider.
	SMTPHost         string `env:"SMTP_HOST"`
	SMTPPort         int    `env:"SMTP_PORT,default=587"`
	SMTPUsername     string `env:"SMTP_USERNAME"`
	SMTPPassword     string `env:"SMTP_PASSWORD"`
	SMTPFrom         string `env:"SMTP_FROM"`
	SMSGatewayURL    string `env:"SMS_GATEWAY_URL"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL   string `env:"TELEGRAM_API_URL,default=https://api.telegram.org"`

	SimulatedEmailFailureRate    float64 `env:"SIMULATED_EMAIL_FAILURE_RATE,default=0"`
	SimulatedSMSFailureRate      float64 `env:"SIMULATED_SMS_FAILURE_RATE,default=0"`
	SimulatedTelegramFailureRate float64 `env:"SIMULATED_TELEGRAM_FAILURE_RATE,default=0"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	rates := map[string]float64{
		"SIMULATED_EMAIL_FAILURE_RATE":    c.SimulatedEmailFailureRate,
		"SIMULATED_SMS_FAILURE_RATE":      c.SimulatedSMSFailureRate,
		"SIMULATED_TELEGRAM_FAILURE_RATE": c.SimulatedTelegramFailureRate,
	}
	for name, rate := range rates {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, rate)
		}
	}
	// A single send must finish before the run looks stale.
	if c.ChannelSendTimeout <= 0 || c.ChannelSendTimeout >= c.StaleInProgressAfter {
		return fmt.Errorf("CHANNEL_SEND_TIMEOUT must be positive and below STALE_IN_PROGRESS_AFTER, got %v", c.ChannelSendTimeout)
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}
	return nil
}
