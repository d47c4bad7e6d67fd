package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/zipshift-backend/api/routes"
	"github.com/angelmondragon/zipshift-backend/internal/assignments"
	"github.com/angelmondragon/zipshift-backend/internal/billing"
	"github.com/angelmondragon/zipshift-backend/internal/dashboard"
	"github.com/angelmondragon/zipshift-backend/internal/earnings"
	"github.com/angelmondragon/zipshift-backend/internal/notifications"
	"github.com/angelmondragon/zipshift-backend/internal/parcels"
	"github.com/angelmondragon/zipshift-backend/internal/payments"
	"github.com/angelmondragon/zipshift-backend/internal/riders"
	"github.com/angelmondragon/zipshift-backend/internal/tracking"
	stripewebhook "github.com/angelmondragon/zipshift-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/zipshift-backend/pkg/auth"
	"github.com/angelmondragon/zipshift-backend/pkg/broadcast"
	"github.com/angelmondragon/zipshift-backend/pkg/config"
	"github.com/angelmondragon/zipshift-backend/pkg/db"
	"github.com/angelmondragon/zipshift-backend/pkg/instance"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/metrics"
	"github.com/angelmondragon/zipshift-backend/pkg/migrate"
	"github.com/angelmondragon/zipshift-backend/pkg/pubsub"
	"github.com/angelmondragon/zipshift-backend/pkg/redis"
	"github.com/angelmondragon/zipshift-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "error closing resources", errs)
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	closers = append(closers, dbClient.Close)

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		closers = append(closers, redisClient.Close)
	} else {
		logg.Warn(ctx, "redis not configured; idempotency, rate limits and dashboard cache disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	lifecycleMetrics := metrics.NewLifecycle(registry)

	hub := broadcast.NewHub(cfg.Broadcast, logg)

	var fanout notifications.FanoutFunc
	if cfg.PubSub.Enabled() {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		closers = append(closers, pubsubClient.Close)
		fanout = pubsubClient.PublishNotification
	}

	gormDB := dbClient.DB()
	notificationRepo := notifications.NewRepository(gormDB)
	notifier, err := notifications.NewPublisher(notifications.PublisherParams{
		Repo:        notificationRepo,
		Broadcaster: hub,
		Fanout:      fanout,
		Logger:      logg,
	})
	requireResource(ctx, logg, "notification publisher", err)

	notificationService, err := notifications.NewService(notificationRepo)
	requireResource(ctx, logg, "notification service", err)

	trackingService, err := tracking.NewService(tracking.NewRepository(gormDB), nil)
	requireResource(ctx, logg, "tracking service", err)

	earningsService, err := earnings.NewService(earnings.ServiceParams{
		Repo:              earnings.NewRepository(gormDB),
		TransactionRunner: dbClient,
		Config:            cfg.Earnings,
		Metrics:           lifecycleMetrics,
		Logger:            logg,
	})
	requireResource(ctx, logg, "earnings service", err)

	billingService, err := billing.NewService(billing.ServiceParams{
		Repo:              billing.NewRepository(gormDB),
		TransactionRunner: dbClient,
		Notifier:          notifier,
		Metrics:           lifecycleMetrics,
		Logger:            logg,
	})
	requireResource(ctx, logg, "billing service", err)

	parcelService, err := parcels.NewService(parcels.ServiceParams{
		Repo:              parcels.NewRepository(gormDB),
		TransactionRunner: dbClient,
		History:           trackingService,
		Earnings:          earningsService,
		Ledger:            billingService,
		Notifier:          notifier,
		Broadcaster:       hub,
		Metrics:           lifecycleMetrics,
		Logger:            logg,
	})
	requireResource(ctx, logg, "parcel service", err)

	assignmentService, err := assignments.NewService(assignments.ServiceParams{
		Repo:              assignments.NewRepository(gormDB),
		TransactionRunner: dbClient,
		History:           trackingService,
		Notifier:          notifier,
		Broadcaster:       hub,
		Metrics:           lifecycleMetrics,
		Logger:            logg,
	})
	requireResource(ctx, logg, "assignment service", err)

	riderService, err := riders.NewService(riders.NewRepository(gormDB), logg, nil)
	requireResource(ctx, logg, "rider service", err)

	var dashboardService dashboard.Service
	dashboardService, err = dashboard.NewService(dashboard.NewRepository(gormDB), billingService, nil)
	requireResource(ctx, logg, "dashboard service", err)
	if cfg.FeatureFlags.DashboardCache && redisClient != nil {
		dashboardService = dashboard.NewCachedService(dashboardService, redisClient, cfg.Dashboard.CacheTTL, logg)
	}

	var (
		stripeClient  *stripe.Client
		gateway       payments.Gateway = payments.SimulatedGateway{}
		webhookGuard  *stripewebhook.IdempotencyGuard
		webhookHandle *stripewebhook.Service
	)
	if cfg.Stripe.Enabled() {
		stripeClient, err = stripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe", err)
		stripeGateway, err := payments.NewStripeGateway(stripeClient)
		requireResource(ctx, logg, "stripe gateway", err)
		gateway = stripeGateway
	} else {
		logg.Warn(ctx, "stripe not configured; payments use the simulated gateway")
	}

	paymentService, err := payments.NewService(parcelService, gateway, logg)
	requireResource(ctx, logg, "payment service", err)

	if stripeClient != nil && redisClient != nil {
		webhookGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, cfg.Idempotency.StripeWebhookTTL, stripewebhook.EventScope)
		requireResource(ctx, logg, "stripe webhook guard", err)
		webhookHandle, err = stripewebhook.NewService(stripewebhook.ServiceParams{
			Parcels:  parcelService,
			Payments: paymentService,
			Logger:   logg,
		})
		requireResource(ctx, logg, "stripe webhook service", err)
	}

	handler := routes.NewRouter(cfg, logg, routes.Dependencies{
		DB:            dbClient,
		Redis:         redisClient,
		Resolver:      auth.NewResolver(cfg.JWT),
		Hub:           hub,
		Metrics:       lifecycleMetrics,
		Gatherer:      registry,
		Parcels:       parcelService,
		Assignments:   assignmentService,
		Riders:        riderService,
		Payments:      paymentService,
		Tracking:      trackingService,
		Billing:       billingService,
		Dashboard:     dashboardService,
		Notifications: notificationService,
		StripeClient:  stripeClient,
		StripeWebhook: webhookHandle,
		StripeGuard:   webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", name), "failed to initialize "+name, err)
	os.Exit(1)
}
