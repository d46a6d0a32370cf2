package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfigueroa/ordercore-backend/internal/catalog"
	"github.com/mfigueroa/ordercore-backend/internal/erpsync"
	"github.com/mfigueroa/ordercore-backend/internal/invoices"
	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/pkg/config"
	"github.com/mfigueroa/ordercore-backend/pkg/db"
	"github.com/mfigueroa/ordercore-backend/pkg/erp"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
	"github.com/mfigueroa/ordercore-backend/pkg/mailer"
	"github.com/mfigueroa/ordercore-backend/pkg/metrics"
	"github.com/mfigueroa/ordercore-backend/pkg/migrate"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "outbox-worker",
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

	ordersRepo := orders.NewRepository(dbClient.DB())
	productsRepo := catalog.NewProductRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())

	invoiceSvc, err := invoices.NewService(dbClient, invoices.NewRepository(dbClient.DB()), ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to build invoice service", err)
		os.Exit(1)
	}

	var erpSvc erpsync.Service
	if cfg.ERP.Enabled() {
		erpClient, err := erp.NewClient(context.Background(), cfg.ERP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to build erp client", err)
			os.Exit(1)
		}
		erpSvc, err = erpsync.NewService(erpClient, productsRepo, ordersRepo, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to build erp sync service", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "erp integration not configured; erp push events will be retried until it is")
	}

	mailClient, err := mailer.NewClient(context.Background(), cfg.Mailer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build mailer client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	outboxMetrics := metrics.NewOutboxMetrics(registry)

	var erpPusher orderPusher
	if erpSvc != nil {
		erpPusher = erpSvc
	}
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		Repository: outboxRepo,
		Handlers:   newHandlers(invoiceSvc, erpPusher, mailClient),
		Metrics:    outboxMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "outbox-worker",
	})

	metricsServer := serveMetrics(ctx, logg, cfg.Outbox.MetricsAddress, registry)
	defer shutdownMetrics(logg, metricsServer)

	logg.Info(ctx, "starting outbox worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string, registry *prometheus.Registry) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	return server
}

func shutdownMetrics(logg *logger.Logger, server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logg.Error(ctx, "metrics server shutdown failed", err)
	}
}
