package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/fallback-dispatch/internal/config"
	"github.com/kursadbilgin/fallback-dispatch/internal/handler"
	"github.com/kursadbilgin/fallback-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/fallback-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/fallback-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/fallback-dispatch/internal/observability"
	"github.com/kursadbilgin/fallback-dispatch/internal/queue"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"github.com/kursadbilgin/fallback-dispatch/internal/service"
	"github.com/kursadbilgin/fallback-dispatch/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "fallback-dispatch-api")
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

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, "fallback-dispatch-api")
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(rabbit)
	defer publisher.Close() //nolint:errcheck

	notificationService, err := service.NewNotificationService(
		repository.NewGormNotificationRepo(db),
		repository.NewGormAttemptRepo(db),
		publisher,
		logger,
	)
	if err != nil {
		logger.Fatal("notification service initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:      "fallback-dispatch-api",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(transport.CorrelationID())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(sqlDB),
		handler.RedisCheck(rdb),
		handler.BrokerCheck(rabbit.IsConnected),
	)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterNotificationRoutes(app, notificationService); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("fallback-dispatch api started", zap.Int("port", cfg.APIPort))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("api server stopped unexpectedly", zap.Error(err))
		}
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	logger.Info("fallback-dispatch api stopped")
}
