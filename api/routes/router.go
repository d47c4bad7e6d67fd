package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/zipshift-backend/api/controllers"
	billingcontrollers "github.com/angelmondragon/zipshift-backend/api/controllers/billing"
	dashboardcontrollers "github.com/angelmondragon/zipshift-backend/api/controllers/dashboard"
	parcelcontrollers "github.com/angelmondragon/zipshift-backend/api/controllers/parcels"
	ridercontrollers "github.com/angelmondragon/zipshift-backend/api/controllers/riders"
	webhookcontrollers "github.com/angelmondragon/zipshift-backend/api/controllers/webhooks"
	"github.com/angelmondragon/zipshift-backend/api/middleware"
	"github.com/angelmondragon/zipshift-backend/internal/assignments"
	"github.com/angelmondragon/zipshift-backend/internal/billing"
	"github.com/angelmondragon/zipshift-backend/internal/dashboard"
	"github.com/angelmondragon/zipshift-backend/internal/notifications"
	"github.com/angelmondragon/zipshift-backend/internal/parcels"
	"github.com/angelmondragon/zipshift-backend/internal/payments"
	"github.com/angelmondragon/zipshift-backend/internal/riders"
	"github.com/angelmondragon/zipshift-backend/internal/tracking"
	stripewebhook "github.com/angelmondragon/zipshift-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/zipshift-backend/pkg/broadcast"
	"github.com/angelmondragon/zipshift-backend/pkg/config"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/metrics"
	"github.com/angelmondragon/zipshift-backend/pkg/redis"
	"github.com/angelmondragon/zipshift-backend/pkg/stripe"
)

// Dependencies carries everything the HTTP surface needs. Redis, Stripe and the
// webhook pieces are optional; nil disables the features built on them.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    *redis.Client
	Resolver middleware.IdentityResolver
	Hub      *broadcast.Hub
	Metrics  *metrics.Lifecycle
	Gatherer prometheus.Gatherer

	Parcels       parcels.Service
	Assignments   assignments.Service
	Riders        riders.Service
	Payments      payments.Service
	Tracking      tracking.Service
	Billing       billing.Service
	Dashboard     dashboard.Service
	Notifications notifications.Service

	StripeClient  *stripe.Client
	StripeWebhook *stripewebhook.Service
	StripeGuard   *stripewebhook.IdempotencyGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.Metrics),
		middleware.CORS(cfg.Broadcast.AllowedOrigins),
	)

	// a typed nil *redis.Client must not reach the middleware as a non-nil interface
	var idempotencyStore redis.IdempotencyStore
	var redisPinger controllers.Pinger
	var limiter *redis.Client
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		redisPinger = deps.Redis
		limiter = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": redisPinger,
		}))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	trackingPolicy := middleware.NewRateLimitPolicy(
		"tracking",
		cfg.RateLimit.TrackingWindow,
		cfg.RateLimit.TrackingIPLimit,
	)
	r.Route("/api/public", func(r chi.Router) {
		if limiter != nil {
			r.Use(middleware.RateLimit(trackingPolicy, limiter, logg))
		}
		r.Get("/tracking/{trackingNumber}", controllers.PublicTracking(deps.Tracking, logg))
	})

	if deps.StripeClient != nil && deps.StripeWebhook != nil && deps.StripeGuard != nil {
		r.Route("/api/v1/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, deps.StripeGuard, logg))
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Resolver, logg))
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Idempotency.TTL, logg))

		r.Route("/merchant", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.AccountRoleMerchant))
			r.Post("/parcels", parcelcontrollers.Create(deps.Parcels, logg))
			r.Get("/parcels", parcelcontrollers.List(deps.Parcels, logg))
			r.Get("/parcels/{parcelId}", parcelcontrollers.Detail(deps.Parcels, logg))
			r.Get("/parcels/{parcelId}/history", parcelcontrollers.History(deps.Parcels, deps.Tracking, logg))
			r.Post("/parcels/{parcelId}/payment", parcelcontrollers.Payment(deps.Payments, logg))
			r.Post("/parcels/{parcelId}/cancel", parcelcontrollers.Cancel(deps.Parcels, logg))
			r.Get("/billing", billingcontrollers.MerchantOverview(deps.Billing, logg))
			r.Get("/dashboard", dashboardcontrollers.Merchant(deps.Dashboard, logg))
		})

		r.Route("/rider", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.AccountRoleRider))
			r.Get("/parcels", parcelcontrollers.List(deps.Parcels, logg))
			r.Post("/parcels/{parcelId}/status", parcelcontrollers.UpdateStatus(deps.Parcels, logg))
			r.Patch("/availability", ridercontrollers.SetAvailability(deps.Riders, logg))
			r.Get("/stats", dashboardcontrollers.Rider(deps.Dashboard, logg))
		})

		r.Route("/operator", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.AccountRoleOperator))
			r.Post("/riders", ridercontrollers.Register(deps.Riders, logg))
			r.Get("/riders", ridercontrollers.List(deps.Riders, logg))
			r.Get("/riders/{riderId}", ridercontrollers.Detail(deps.Riders, logg))
			r.Get("/parcels", parcelcontrollers.List(deps.Parcels, logg))
			r.Get("/parcels/{parcelId}", parcelcontrollers.Detail(deps.Parcels, logg))
			r.Post("/parcels/{parcelId}/assign", parcelcontrollers.Assign(deps.Assignments, logg))
			r.Post("/parcels/{parcelId}/status", parcelcontrollers.UpdateStatus(deps.Parcels, logg))
			r.Get("/billing/{merchantId}", billingcontrollers.OperatorOverview(deps.Billing, logg))
			r.Post("/billing/{merchantId}/payouts", billingcontrollers.RecordPayout(deps.Billing, logg))
			r.Get("/stats", dashboardcontrollers.Operator(deps.Dashboard, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	if deps.Hub != nil {
		r.With(middleware.Auth(deps.Resolver, logg)).Get("/ws", controllers.Realtime(deps.Hub, logg))
	}

	return r
}
