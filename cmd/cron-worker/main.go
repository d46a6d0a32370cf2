package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mfigueroa/ordercore-backend/internal/catalog"
	"github.com/mfigueroa/ordercore-backend/internal/cron"
	"github.com/mfigueroa/ordercore-backend/internal/erpsync"
	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/pkg/config"
	"github.com/mfigueroa/ordercore-backend/pkg/db"
	"github.com/mfigueroa/ordercore-backend/pkg/erp"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
	"github.com/mfigueroa/ordercore-backend/pkg/metrics"
	"github.com/mfigueroa/ordercore-backend/pkg/migrate"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
	"github.com/mfigueroa/ordercore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		Pruner:    outbox.NewRepository(dbClient.DB()),
		Retention: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	registry.Register(retentionJob)

	if cfg.ERP.Enabled() {
		erpClient, err := erp.NewClient(context.Background(), cfg.ERP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create erp client", err)
			os.Exit(1)
		}
		syncSvc, err := erpsync.NewService(
			erpClient,
			catalog.NewProductRepository(dbClient.DB()),
			orders.NewRepository(dbClient.DB()),
			logg,
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create erp sync service", err)
			os.Exit(1)
		}
		pullJob, err := cron.NewERPPullJob(cron.ERPPullJobParams{Logger: logg, Syncer: syncSvc})
		if err != nil {
			logg.Error(context.Background(), "failed to create erp pull job", err)
			os.Exit(1)
		}
		registry.Register(pullJob)
	} else {
		logg.Warn(context.Background(), "erp integration not configured; catalog pull disabled")
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
