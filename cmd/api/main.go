package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lotkeeper/lotkeeper-backend/api/routes"
	"github.com/lotkeeper/lotkeeper-backend/internal/ledger"
	lotsvc "github.com/lotkeeper/lotkeeper-backend/internal/lots"
	productsvc "github.com/lotkeeper/lotkeeper-backend/internal/products"
	"github.com/lotkeeper/lotkeeper-backend/internal/stocksync"
	"github.com/lotkeeper/lotkeeper-backend/pkg/config"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db"
	"github.com/lotkeeper/lotkeeper-backend/pkg/logger"
	"github.com/lotkeeper/lotkeeper-backend/pkg/metrics"
	"github.com/lotkeeper/lotkeeper-backend/pkg/migrate"
	"github.com/lotkeeper/lotkeeper-backend/pkg/redis"
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

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, idempotency replay protection disabled")
	}

	registry := prometheus.NewRegistry()
	operationMetrics := metrics.NewOperationMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	conn := dbClient.DB()
	sync := stocksync.NewSynchronizer(conn)
	productRepo := productsvc.NewRepository(conn)

	ledgerService, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	lotService, err := lotsvc.NewService(
		dbClient,
		lotsvc.NewRepository(conn),
		productRepo,
		ledgerService,
		sync,
		operationMetrics,
		cfg.Lots,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create lot service", err)
		os.Exit(1)
	}

	productService, err := productsvc.NewService(dbClient, productRepo, sync)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

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
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			HTTPMetrics: httpMetrics,
			Gatherer:    registry,
			Lots:        lotService,
			Products:    productService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
