package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/farmanet-cl/farmanet/internal/app"
	"github.com/farmanet-cl/farmanet/internal/fulfillment"
	"github.com/farmanet-cl/farmanet/internal/inventory"
	"github.com/farmanet-cl/farmanet/internal/observability"
	"github.com/farmanet-cl/farmanet/internal/platform/cache"
	"github.com/farmanet-cl/farmanet/internal/platform/db"
	"github.com/farmanet-cl/farmanet/internal/prescription"
	"github.com/farmanet-cl/farmanet/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The ingredient cache is a nice-to-have: a dead Redis only costs hits.
	var detailCache inventory.DetailCache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, ingredient cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		detailCache = inventory.NewRedisDetailCache(redisClient, cfg.IngredientCacheTTL, logger)
	}

	metrics := observability.NewMetrics()

	inventoryService := inventory.NewService(inventory.NewRepository(pool), detailCache, logger)

	var (
		port             fulfillment.InventoryPort
		inventoryHandler *inventory.Handler
	)
	switch cfg.InventoryMode {
	case app.InventoryModeRemote:
		port = fulfillment.NewRemoteInventory(cfg.InventoryBaseURL, cfg.InventoryTimeout)
		logger.Info("inventory mode: remote", slog.String("base_url", cfg.InventoryBaseURL))
	default:
		port = fulfillment.NewLocalInventory(inventoryService)
		inventoryHandler = inventory.NewHandler(logger, inventoryService)
		logger.Info("inventory mode: local")
	}

	fulfillmentService := fulfillment.NewService(
		prescription.NewRepository(pool),
		port,
		fulfillment.NewPGRecorder(pool),
		logger,
		fulfillment.NewMetrics(metrics.Registerer()),
	)
	fulfillmentHandler := fulfillment.NewHandler(logger, fulfillmentService, shared.NewIdempotencyStore(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		InventoryHandler:   inventoryHandler,
		FulfillmentHandler: fulfillmentHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("fulfillment server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
