package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/mfigueroa/ordercore-backend/api/controllers"
	"github.com/mfigueroa/ordercore-backend/api/routes"
	"github.com/mfigueroa/ordercore-backend/internal/catalog"
	"github.com/mfigueroa/ordercore-backend/internal/checkout"
	"github.com/mfigueroa/ordercore-backend/internal/erpsync"
	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/internal/payments"
	"github.com/mfigueroa/ordercore-backend/internal/pricing"
	"github.com/mfigueroa/ordercore-backend/internal/shipping"
	"github.com/mfigueroa/ordercore-backend/pkg/config"
	"github.com/mfigueroa/ordercore-backend/pkg/db"
	"github.com/mfigueroa/ordercore-backend/pkg/erp"
	"github.com/mfigueroa/ordercore-backend/pkg/gateway"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
	"github.com/mfigueroa/ordercore-backend/pkg/migrate"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
	"github.com/mfigueroa/ordercore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	productsRepo := catalog.NewProductRepository(dbClient.DB())
	couponsRepo := catalog.NewCouponRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	pricer, err := pricing.NewEngine(productsRepo, couponsRepo, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing engine", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(dbClient, pricer, ordersRepo, productsRepo, couponsRepo, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Payment, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(dbClient, gatewayClient, ordersRepo, paymentsRepo, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	var erpSvc erpsync.Service
	if cfg.ERP.Enabled() {
		erpClient, err := erp.NewClient(context.Background(), cfg.ERP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create erp client", err)
			os.Exit(1)
		}
		erpSvc, err = erpsync.NewService(erpClient, productsRepo, ordersRepo, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create erp sync service", err)
			os.Exit(1)
		}
	}

	shippingRegistry := shipping.NewRegistry(cfg.Shipping, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config: cfg,
			Logger: logg,
			Redis:  redisClient,
			Pingers: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			CheckoutService: checkoutSvc,
			OrdersService:   ordersSvc,
			PaymentsService: paymentsSvc,
			ERPSyncService:  erpSvc,
			Shipping:        shippingRegistry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
