package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/fallback-dispatch/internal/channel"
	"github.com/kursadbilgin/fallback-dispatch/internal/config"
	"github.com/kursadbilgin/fallback-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/fallback-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/fallback-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/fallback-dispatch/internal/observability"
	"github.com/kursadbilgin/fallback-dispatch/internal/queue"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"github.com/kursadbilgin/fallback-dispatch/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	reconcileBatchSize = 100
	shutdownTimeout    = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "fallback-dispatch-worker")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(context.Background(), cfg.DatabaseDSN, postgresql.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(context.Background(), cfg.RedisURL, cfg.RedisPoolSize)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	locker, err := infraredis.NewRedisLocker(rdb)
	if err != nil {
		logger.Fatal("delivery lease initialization failed", zap.Error(err))
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, "fallback-dispatch-worker")
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close() //nolint:errcheck

	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	senders, err := channel.NewRegistryFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("channel registry initialization failed", zap.Error(err))
	}

	notifications := repository.NewGormNotificationRepo(db)
	attempts := repository.NewGormAttemptRepo(db)
	metrics := observability.NewMetrics()

	deliveryService, err := service.NewDeliveryService(notifications, attempts, senders, logger)
	if err != nil {
		logger.Fatal("delivery service initialization failed", zap.Error(err))
	}
	deliveryService.SetMetrics(metrics)
	deliveryService.SetSendTimeout(cfg.ChannelSendTimeout)

	workerService, err := service.NewWorkerService(
		notifications,
		deliveryService,
		consumer,
		locker,
		cfg.DeliveryLeaseTTL,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}
	workerService.SetMetrics(metrics)

	reconciler, err := service.NewStaleReconciler(
		notifications,
		cfg.ReconcileInterval,
		cfg.StaleInProgressAfter,
		reconcileBatchSize,
		logger,
	)
	if err != nil {
		logger.Fatal("stale reconciler initialization failed", zap.Error(err))
	}
	reconciler.SetMetrics(metrics)

	sweeper, err := service.NewPendingSweeper(
		notifications,
		publisher,
		cfg.ReconcileInterval,
		cfg.PendingRepublishAfter,
		reconcileBatchSize,
		logger,
	)
	if err != nil {
		logger.Fatal("pending sweeper initialization failed", zap.Error(err))
	}
	sweeper.SetMetrics(metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerMetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return workerService.Start(gctx) })
	g.Go(func() error { return reconciler.Start(gctx) })
	g.Go(func() error { return sweeper.Start(gctx) })
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	logger.Info("fallback-dispatch worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Int("metrics_port", cfg.WorkerMetricsPort),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", zap.Error(err))
	}

	logger.Info("fallback-dispatch worker stopped")
}
