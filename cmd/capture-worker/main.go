package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pledgeforge/backerstore-backend/internal/accounts"
	"github.com/pledgeforge/backerstore-backend/internal/cron"
	"github.com/pledgeforge/backerstore-backend/internal/notifications"
	"github.com/pledgeforge/backerstore-backend/internal/orders"
	"github.com/pledgeforge/backerstore-backend/internal/reconcile"
	"github.com/pledgeforge/backerstore-backend/pkg/config"
	"github.com/pledgeforge/backerstore-backend/pkg/db"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
	"github.com/pledgeforge/backerstore-backend/pkg/metrics"
	"github.com/pledgeforge/backerstore-backend/pkg/migrate"
	"github.com/pledgeforge/backerstore-backend/pkg/redis"
	"github.com/pledgeforge/backerstore-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "capture-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "capture-worker",
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
	notificationRepo := notifications.NewRepository(dbClient.DB())

	notifySvc, err := notifications.NewService(notificationRepo, accountRepo, nil, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	captureMetrics := metrics.NewCaptureMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	sweeper, err := reconcile.NewSweeper(orderRepo, stripeClient, notifySvc, captureMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create capture sweeper", err)
		os.Exit(1)
	}

	captureJob, err := reconcile.NewCaptureJob(sweeper)
	if err != nil {
		logg.Error(context.Background(), "failed to create capture job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("capture-worker"), cfg.Capture.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(captureJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Capture.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"interval":   cfg.Capture.Interval.String(),
		"stripe_env": cfg.Stripe.Environment(),
	})
	logg.Info(ctx, "starting capture worker")

	metricsServer := &http.Server{
		Addr:    ":" + cfg.Capture.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer metricsServer.Close()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "capture worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "capture worker shutting down gracefully")
}
