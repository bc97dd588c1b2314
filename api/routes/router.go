package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelierworks/atelier-backend/api/controllers"
	ordercontrollers "github.com/atelierworks/atelier-backend/api/controllers/orders"
	"github.com/atelierworks/atelier-backend/api/middleware"
	internalorders "github.com/atelierworks/atelier-backend/internal/orders"
	"github.com/atelierworks/atelier-backend/pkg/config"
	"github.com/atelierworks/atelier-backend/pkg/db"
	"github.com/atelierworks/atelier-backend/pkg/logger"
	"github.com/atelierworks/atelier-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient db.Pinger,
	redisClient *redis.Client,
	ordersSvc internalorders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(
			middleware.Actor(logg),
			// After Actor: idempotency records are scoped per caller.
			middleware.Idempotency(redisClient, logg),
		)

		r.Post("/", ordercontrollers.Create(ordersSvc, logg))
		r.Get("/", ordercontrollers.List(ordersSvc, logg))

		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(ordersSvc, logg))
			r.Get("/timeline", ordercontrollers.Timeline(ordersSvc, logg))

			r.Post("/advance", ordercontrollers.Advance(ordersSvc, logg))
			r.Post("/ship", ordercontrollers.Ship(ordersSvc, logg))
			r.Post("/cancel", ordercontrollers.Cancel(ordersSvc, logg))
			r.Post("/confirm-delivery", ordercontrollers.ConfirmDelivery(ordersSvc, logg))

			r.Route("/consultation", func(r chi.Router) {
				r.Post("/request", ordercontrollers.RequestConsultation(ordersSvc, logg))
				r.Post("/start", ordercontrollers.StartConsultation(ordersSvc, logg))
				r.Post("/complete", ordercontrollers.CompleteConsultation(ordersSvc, logg))
				r.Post("/waive", ordercontrollers.WaiveConsultation(ordersSvc, logg))
			})

			r.Route("/adjustments", func(r chi.Router) {
				r.Post("/", ordercontrollers.ProposeAdjustment(ordersSvc, logg))
				r.Post("/resolve", ordercontrollers.ResolveAdjustment(ordersSvc, logg))
			})
		})
	})

	return r
}
