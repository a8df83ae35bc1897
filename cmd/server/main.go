package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-pos-backend/internal/ai"
	"go-pos-backend/internal/auth"
	"go-pos-backend/internal/catalog"
	"go-pos-backend/internal/config"
	"go-pos-backend/internal/customers"
	"go-pos-backend/internal/database"
	"go-pos-backend/internal/handlers"
	"go-pos-backend/internal/inventory"
	"go-pos-backend/internal/lock"
	"go-pos-backend/internal/logging"
	"go-pos-backend/internal/loyalty"
	"go-pos-backend/internal/reporting"
	"go-pos-backend/internal/sales"
	"go-pos-backend/internal/server"
	"go-pos-backend/internal/staff"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if cfg == nil {
		log.Fatalf("config: %v", err)
	}

	logger, lerr := logging.New(cfg.App.Environment, cfg.App.LogLevel)
	if lerr != nil {
		log.Fatalf("logger: %v", lerr)
	}
	defer func() { _ = logger.Sync() }()
	if err != nil {
		logger.Warn("configuration loaded with warnings", zap.Error(err))
	}

	db, err := database.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}

	locks := lock.NewManager()
	store := catalog.NewStore(db, logger)

	// The product cache is optional: without REDIS_URL the catalog reads straight from the database.
	var (
		products catalog.Catalog         = store
		observer inventory.StockObserver = inventory.NoopObserver
	)
	if cfg.Redis.Addr != "" {
		rdb, err := catalog.ConnectRedis(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, product cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			cached := catalog.NewCachedStore(store, rdb, logger)
			products, observer = cached, cached
			logger.Info("product cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	inv := inventory.NewLedger(db, logger, observer)
	reports := reporting.NewReporter(db, logger)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	deps := handlers.Deps{
		Catalog:   products,
		Inventory: inv,
		Loyalty:   loyalty.NewLedger(db, logger, locks),
		Sales:     sales.NewEngine(db, locks, logger, observer),
		Reports:   reports,
		Customers: customers.NewStore(db, locks, logger),
		Staff:     staff.NewDirectory(db, logger),
		Issuer:    issuer,
		Log:       logger,
	}
	if cfg.AI.GeminiAPIKey != "" {
		agent, err := ai.NewAgent(context.Background(), cfg.AI, ai.NewToolbox(products, inv, reports, logger), logger)
		if err != nil {
			logger.Warn("assistant disabled", zap.Error(err))
		} else {
			defer agent.Close()
			deps.Assistant = agent
		}
	}

	router := server.NewRouter(cfg, handlers.New(deps), logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("base_url", cfg.Server.BaseURL), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
