package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
	"github.com/ariefcatur/go-commerce-core.git/internal/config"
	"github.com/ariefcatur/go-commerce-core.git/internal/httpx"
	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-commerce-core.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-core.git/internal/logx"
	"github.com/ariefcatur/go-commerce-core.git/internal/orders"
	"github.com/ariefcatur/go-commerce-core.git/internal/postgres"
	"github.com/ariefcatur/go-commerce-core.git/internal/promo"
	"github.com/ariefcatur/go-commerce-core.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnBoot {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	brokers := cfg.KafkaBrokers
	if !cfg.KafkaEnabled {
		brokers = nil // producer jadi no-op
	}
	placed := kafkax.NewProducer(brokers, orders.TopicOrderPlaced, 1024, log)
	cancelled := kafkax.NewProducer(brokers, orders.TopicOrderCancelled, 1024, log)
	adjusted := kafkax.NewProducer(brokers, orders.TopicInventoryAdjusted, 1024, log)
	placed.Start()
	cancelled.Start()
	adjusted.Start()

	catalogRepo := &catalog.Repo{DB: db}
	promoRepo := &promo.Repo{DB: db}
	ledger := &inventory.Ledger{DB: db}
	coord := &orders.Coordinator{DB: db, Catalog: catalogRepo, Promos: promoRepo, Inventory: ledger}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Coordinator:       coord,
		Catalog:           catalogRepo,
		PlacedProducer:    placed,
		CancelledProducer: cancelled,
		Redis:             rdb,
		Log:               log,
		Service:           cfg.ServiceName,
	}).Register(router)
	(&httpx.PromotionsHandler{
		Coordinator: coord,
		Catalog:     catalogRepo,
		Promos:      promoRepo,
	}).Register(router)
	(&httpx.InventoryHandler{
		Ledger:           ledger,
		AdjustedProducer: adjusted,
		Redis:            rdb,
		Service:          cfg.ServiceName,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server exit", zap.Error(err))
	}

	log.Info("shutting down")
	placed.Close()
	cancelled.Close()
	adjusted.Close()
	placed.WaitClosed()
	cancelled.WaitClosed()
	adjusted.WaitClosed()
}
