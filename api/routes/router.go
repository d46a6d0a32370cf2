package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mfigueroa/ordercore-backend/api/controllers"
	"github.com/mfigueroa/ordercore-backend/api/middleware"
	checkoutsvc "github.com/mfigueroa/ordercore-backend/internal/checkout"
	erpsyncsvc "github.com/mfigueroa/ordercore-backend/internal/erpsync"
	orderssvc "github.com/mfigueroa/ordercore-backend/internal/orders"
	paymentssvc "github.com/mfigueroa/ordercore-backend/internal/payments"
	"github.com/mfigueroa/ordercore-backend/internal/shipping"
	"github.com/mfigueroa/ordercore-backend/pkg/config"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
	"github.com/mfigueroa/ordercore-backend/pkg/redis"
)

type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	Redis           *redis.Client
	Pingers         map[string]controllers.Pinger
	CheckoutService checkoutsvc.Service
	OrdersService   orderssvc.Service
	PaymentsService paymentssvc.Service
	ERPSyncService  erpsyncsvc.Service
	Shipping        *shipping.Registry
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Pingers))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.Redis != nil {
			r.Use(middleware.Idempotency(params.Redis, logg))
		}

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.Checkout(params.CheckoutService, logg))
			r.Get("/{orderId}", controllers.GetOrder(params.OrdersService, logg))
			r.Patch("/{orderId}/tracking", controllers.UpdateTracking(params.OrdersService, logg))
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/payment", controllers.PaymentWebhook(params.PaymentsService, logg))
		})

		r.Route("/erp", func(r chi.Router) {
			r.Post("/sync", controllers.TriggerERPSync(params.ERPSyncService, logg))
		})

		r.Route("/shipping", func(r chi.Router) {
			r.Post("/labels", controllers.GenerateLabel(params.Shipping, logg))
			r.Post("/pickups", controllers.SchedulePickup(params.Shipping, logg))
			r.Get("/{provider}/track/{awb}", controllers.TrackShipment(params.Shipping, logg))
		})
	})

	return r
}
