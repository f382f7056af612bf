package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/merchflow/p2pbot/internal/cache"
	"github.com/merchflow/p2pbot/internal/config"
	"github.com/merchflow/p2pbot/internal/database"
	"github.com/merchflow/p2pbot/internal/intention"
	"github.com/merchflow/p2pbot/internal/locker"
	"github.com/merchflow/p2pbot/internal/mailbox"
	"github.com/merchflow/p2pbot/internal/scheduler"
	"github.com/merchflow/p2pbot/internal/upstream"
	"github.com/merchflow/p2pbot/internal/usecase"
	"github.com/merchflow/p2pbot/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Create logger
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.New(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Connect to Redis
	rdb, err := database.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()

	// Connect to PostgreSQL
	db, err := database.NewPostgresDB(cfg.PostgresDSN)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	// Shared infrastructure
	intents, err := intention.NewStore(db)
	if err != nil {
		zapLogger.Fatal("Failed to initialize intention store", zap.Error(err))
	}
	locks := locker.New(rdb, zapLogger, cfg.LockTTL, cfg.LockWait, cfg.LockRetryStep)
	kv := cache.NewTTL(rdb)
	books := cache.NewOrderBook(kv, cfg.OrderbookTTL)
	mail := mailbox.New(rdb, locks, zapLogger, cfg.MailboxPollInterval, cfg.MailboxMaxPolls)

	// Upstream access through the mediator facade
	login := upstream.NewMediatorLogin(cfg.MediatorURL, mail, zapLogger)
	sessions := upstream.NewSessionCache(kv, locks, login, cfg.Exchange, cfg.SessionTTL, zapLogger)
	trading := upstream.NewMediator(cfg.MediatorURL, sessions, zapLogger)

	// Use cases
	collect := usecase.NewCollectInfo(trading, books, cfg.Exchange, zapLogger)
	place := usecase.NewPlaceOrder(intents, collect, trading, locks, mail, cfg.Exchange, zapLogger)
	tracker := usecase.NewIntervalTracker(cfg.ConvoyBaseInterval, cfg.ConvoyMaxInterval, cfg.ConvoyTrackLen)
	convoy := usecase.NewConvoy(intents, collect, trading, locks, tracker, cfg.Exchange, zapLogger)
	offers := usecase.NewOfferWatch(intents, trading, mail, kv, cfg.Exchange, zapLogger)

	sched := scheduler.New(zapLogger)
	sched.Register("place", scheduler.TaskFunc(place.ExecutePending), cfg.PlaceTick)
	sched.Register("convoy", convoy, cfg.ConvoyTick)
	sched.Register("offers", offers, cfg.OfferTick)

	// Expose Prometheus metrics
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		zapLogger.Info("Starting metrics server", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start metrics server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("Starting scheduler",
		zap.Duration("place_tick", cfg.PlaceTick),
		zap.Duration("convoy_tick", cfg.ConvoyTick),
		zap.Duration("offer_tick", cfg.OfferTick))
	sched.Run(ctx)

	zapLogger.Info("Shutting down...")
	if err := metricsSrv.Shutdown(context.Background()); err != nil {
		zapLogger.Error("Failed to stop metrics server", zap.Error(err))
	}
	zapLogger.Info("Bot exited properly")
}
