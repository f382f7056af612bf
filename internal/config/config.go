// Package config loads runtime configuration from the environment and
// an optional .env file via viper. Every tunable of the repricing core
// (spreads, TTLs, polling bounds) is fixed here at construction time;
// nothing is configured per call.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/merchflow/p2pbot/pkg/models"
)

// Config is the full runtime configuration of the bot.
type Config struct {
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN string

	MediatorURL string
	SessionTTL  time.Duration

	MetricsAddr string

	Exchange models.Exchange

	// Scheduler ticks.
	ConvoyTick   time.Duration
	OfferTick    time.Duration
	PlaceTick    time.Duration
	OrderbookTTL time.Duration

	// Distributed lock bounds.
	LockTTL       time.Duration
	LockWait      time.Duration
	LockRetryStep time.Duration

	// Mailbox polling bounds.
	MailboxPollInterval time.Duration
	MailboxMaxPolls     int

	// Adaptive convoy interval bounds.
	ConvoyBaseInterval time.Duration
	ConvoyMaxInterval  time.Duration
	ConvoyTrackLen     int

	// Defaults applied to intentions that carry no explicit settings.
	DefaultSettings models.AdSettings
}

// Load reads configuration from .env and the process environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	// A missing .env is fine; the environment alone may carry everything.
	_ = v.ReadInConfig()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("METRICS_ADDR", ":9105")
	v.SetDefault("EXCHANGE", string(models.ExchangeBinance))
	v.SetDefault("MEDIATOR_URL", "http://localhost:8091")
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("CONVOY_TICK", "10s")
	v.SetDefault("OFFER_TICK", "29s")
	v.SetDefault("PLACE_TICK", "5s")
	v.SetDefault("ORDERBOOK_TTL", "10s")
	v.SetDefault("LOCK_TTL", "300s")
	v.SetDefault("LOCK_WAIT", "10s")
	v.SetDefault("LOCK_RETRY_STEP", "100ms")
	v.SetDefault("MAILBOX_POLL_INTERVAL", "1s")
	v.SetDefault("MAILBOX_MAX_POLLS", 600)
	v.SetDefault("CONVOY_BASE_INTERVAL", "10s")
	v.SetDefault("CONVOY_MAX_INTERVAL", "60s")
	v.SetDefault("CONVOY_TRACK_LEN", 10)
	v.SetDefault("COMPETITOR_SPREAD", 15)
	v.SetDefault("BEST_SPREAD", 10)
	v.SetDefault("INTERCEPTION_THRESHOLD", 50)

	return &Config{
		LogLevel:            v.GetString("LOG_LEVEL"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		PostgresDSN:         v.GetString("POSTGRES_DSN"),
		MediatorURL:         v.GetString("MEDIATOR_URL"),
		SessionTTL:          v.GetDuration("SESSION_TTL"),
		MetricsAddr:         v.GetString("METRICS_ADDR"),
		Exchange:            models.Exchange(v.GetString("EXCHANGE")),
		ConvoyTick:          v.GetDuration("CONVOY_TICK"),
		OfferTick:           v.GetDuration("OFFER_TICK"),
		PlaceTick:           v.GetDuration("PLACE_TICK"),
		OrderbookTTL:        v.GetDuration("ORDERBOOK_TTL"),
		LockTTL:             v.GetDuration("LOCK_TTL"),
		LockWait:            v.GetDuration("LOCK_WAIT"),
		LockRetryStep:       v.GetDuration("LOCK_RETRY_STEP"),
		MailboxPollInterval: v.GetDuration("MAILBOX_POLL_INTERVAL"),
		MailboxMaxPolls:     v.GetInt("MAILBOX_MAX_POLLS"),
		ConvoyBaseInterval:  v.GetDuration("CONVOY_BASE_INTERVAL"),
		ConvoyMaxInterval:   v.GetDuration("CONVOY_MAX_INTERVAL"),
		ConvoyTrackLen:      v.GetInt("CONVOY_TRACK_LEN"),
		DefaultSettings: models.AdSettings{
			MerchantName:          v.GetString("MERCHANT_NAME"),
			CompetitorSpread:      v.GetInt("COMPETITOR_SPREAD"),
			BestSpread:            v.GetInt("BEST_SPREAD"),
			InterceptionThreshold: v.GetInt64("INTERCEPTION_THRESHOLD"),
			PaymentComment:        v.GetString("PAYMENT_COMMENT"),
		},
	}, nil
}
