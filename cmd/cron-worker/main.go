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

	"github.com/atelierworks/atelier-backend/internal/adjustments"
	"github.com/atelierworks/atelier-backend/internal/consultations"
	"github.com/atelierworks/atelier-backend/internal/cron"
	"github.com/atelierworks/atelier-backend/internal/escrow"
	"github.com/atelierworks/atelier-backend/internal/orders"
	"github.com/atelierworks/atelier-backend/internal/timeline"
	"github.com/atelierworks/atelier-backend/pkg/config"
	"github.com/atelierworks/atelier-backend/pkg/db"
	"github.com/atelierworks/atelier-backend/pkg/logger"
	"github.com/atelierworks/atelier-backend/pkg/metrics"
	"github.com/atelierworks/atelier-backend/pkg/migrate"
	"github.com/atelierworks/atelier-backend/pkg/outbox"
	"github.com/atelierworks/atelier-backend/pkg/redis"
	"github.com/atelierworks/atelier-backend/pkg/square"
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

	ordersSvc, err := buildOrdersService(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build orders service", err)
		os.Exit(1)
	}

	consultationJob, err := cron.NewConsultationExpiryJob(cron.ConsultationExpiryJobParams{
		Logger: logg,
		Orders: ordersSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create consultation expiry job", err)
		os.Exit(1)
	}
	adjustmentJob, err := cron.NewAdjustmentExpiryJob(cron.AdjustmentExpiryJobParams{
		Logger: logg,
		Orders: ordersSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create adjustment expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(consultationJob, adjustmentJob),
		Lock:     lock,
		Metrics:  metricsCollector,
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

	go serveMetrics(ctx, logg)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildOrdersService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (orders.Service, error) {
	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		return nil, err
	}
	processor, err := escrow.NewSquareProcessor(squareClient)
	if err != nil {
		return nil, err
	}
	escrowSvc, err := escrow.NewService(escrow.NewRepository(dbClient.DB()), processor)
	if err != nil {
		return nil, err
	}
	consultationSvc, err := consultations.NewService(consultations.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	adjustmentSvc, err := adjustments.NewService(adjustments.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	timelineSvc, err := timeline.NewService(timeline.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	return orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		consultationSvc,
		adjustmentSvc,
		escrowSvc,
		timelineSvc,
		outboxSvc,
	)
}

func serveMetrics(ctx context.Context, logg *logger.Logger) {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		port = "9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
