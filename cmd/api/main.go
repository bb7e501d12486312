package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/pledgeforge/backerstore-backend/api/routes"
	"github.com/pledgeforge/backerstore-backend/internal/accounts"
	"github.com/pledgeforge/backerstore-backend/internal/carts"
	"github.com/pledgeforge/backerstore-backend/internal/catalog"
	checkoutsvc "github.com/pledgeforge/backerstore-backend/internal/checkout"
	"github.com/pledgeforge/backerstore-backend/internal/notifications"
	"github.com/pledgeforge/backerstore-backend/internal/orders"
	"github.com/pledgeforge/backerstore-backend/internal/profiles"
	"github.com/pledgeforge/backerstore-backend/internal/reconcile"
	"github.com/pledgeforge/backerstore-backend/internal/rules"
	"github.com/pledgeforge/backerstore-backend/internal/strategies"
	"github.com/pledgeforge/backerstore-backend/pkg/config"
	"github.com/pledgeforge/backerstore-backend/pkg/db"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
	"github.com/pledgeforge/backerstore-backend/pkg/migrate"
	"github.com/pledgeforge/backerstore-backend/pkg/redis"
	"github.com/pledgeforge/backerstore-backend/pkg/stripe"
)

const webhookGuardTTL = 24 * time.Hour

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	accountRepo := accounts.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())

	ruleStore, err := rules.NewStore(rules.NewRepository(dbClient.DB()), redisClient, cfg.Rules.CacheTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create rule store", err)
		os.Exit(1)
	}

	classifier, err := profiles.NewClassifier(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create classifier", err)
		os.Exit(1)
	}

	resolver, err := strategies.NewResolver(ruleStore, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create strategy resolver", err)
		os.Exit(1)
	}

	cartValidator, err := carts.NewValidator(catalogRepo, ruleStore, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart validator", err)
		os.Exit(1)
	}

	notifySvc, err := notifications.NewService(notificationRepo, accountRepo, nil, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(
		dbClient,
		accountRepo,
		orderRepo,
		classifier,
		resolver,
		cartValidator,
		stripeClient,
		notifySvc,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	sweeper, err := reconcile.NewSweeper(orderRepo, stripeClient, notifySvc, nil, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create capture sweeper", err)
		os.Exit(1)
	}

	eventService, err := reconcile.NewEventService(orderRepo, notifySvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook event service", err)
		os.Exit(1)
	}

	eventGuard, err := reconcile.NewEventGuard(redisClient, webhookGuardTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": cfg.Stripe.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			accountRepo,
			classifier,
			resolver,
			cartValidator,
			checkoutService,
			sweeper,
			eventService,
			eventGuard,
			stripeClient,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
