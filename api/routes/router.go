package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pledgeforge/backerstore-backend/api/controllers"
	webhookcontrollers "github.com/pledgeforge/backerstore-backend/api/controllers/webhooks"
	"github.com/pledgeforge/backerstore-backend/api/middleware"
	"github.com/pledgeforge/backerstore-backend/internal/accounts"
	"github.com/pledgeforge/backerstore-backend/internal/carts"
	checkoutsvc "github.com/pledgeforge/backerstore-backend/internal/checkout"
	"github.com/pledgeforge/backerstore-backend/internal/profiles"
	"github.com/pledgeforge/backerstore-backend/internal/reconcile"
	"github.com/pledgeforge/backerstore-backend/internal/strategies"
	"github.com/pledgeforge/backerstore-backend/pkg/config"
	"github.com/pledgeforge/backerstore-backend/pkg/db"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
	"github.com/pledgeforge/backerstore-backend/pkg/redis"
	"github.com/pledgeforge/backerstore-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger db.Pinger,
	redisClient *redis.Client,
	accountRepo accounts.Repository,
	classifier *profiles.Classifier,
	resolver *strategies.Resolver,
	cartValidator *carts.Validator,
	checkoutService checkoutsvc.Service,
	sweeper *reconcile.Sweeper,
	eventService reconcile.EventService,
	eventGuard *reconcile.EventGuard,
	stripeClient *stripe.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.Checkout.RateLimitWindow,
		cfg.Checkout.RateLimitIPLimit,
		cfg.Checkout.RateLimitEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisClient))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(eventService, stripeClient, eventGuard, logg))
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Post("/quote", controllers.CartQuote(accountRepo, classifier, resolver, cartValidator, logg))
	})

	r.With(middleware.RateLimit(checkoutPolicy, redisClient, logg)).
		Post("/api/v1/checkout", controllers.Checkout(checkoutService, logg))

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.OperatorAuth(cfg.Operator, logg))
		r.Post("/capture-runs", controllers.AdminCaptureRun(sweeper, logg))
	})

	return r
}
