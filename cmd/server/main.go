package main

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/ledger/api/handler"
	"github.com/fastygo/ledger/internal/config"
	"github.com/fastygo/ledger/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/ledger/internal/infrastructure/postgres"
	"github.com/fastygo/ledger/internal/infrastructure/queue"
	redisInfra "github.com/fastygo/ledger/internal/infrastructure/redis"
	"github.com/fastygo/ledger/internal/metrics"
	"github.com/fastygo/ledger/internal/middleware"
	"github.com/fastygo/ledger/internal/router"
	"github.com/fastygo/ledger/internal/services"
	"github.com/fastygo/ledger/internal/services/lifecycle"
	"github.com/fastygo/ledger/pkg/httpcontext"
	"github.com/fastygo/ledger/pkg/logger"
	"github.com/fastygo/ledger/repository"
	"github.com/fastygo/ledger/repository/postgres"
	"github.com/fastygo/ledger/repository/rates"
	redisRepo "github.com/fastygo/ledger/repository/redis"
	"github.com/fastygo/ledger/usecase"
	ledgerUC "github.com/fastygo/ledger/usecase/ledger"
	transferUC "github.com/fastygo/ledger/usecase/transfer"
	"github.com/fastygo/ledger/usecase/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	queueStore, err := queue.Open(cfg.Queue.Path, cfg.Queue.Bucket)
	if err != nil {
		zapLogger.Fatal("failed to open job queue", zap.Error(err))
	}
	manager.Register("queue", func(ctx context.Context) error {
		return queueStore.Close()
	})

	mon := monitor.New(pool, redisClient, queueStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	registry := prometheus.NewRegistry()
	stats := metrics.New(registry)

	eventStore := postgres.NewEventStore(pool)
	snapshotStore := postgres.NewSnapshotStore(pool)
	workflowStore := postgres.NewWorkflowStore(pool)
	queryCache := redisRepo.NewQueryCache(redisClient)
	balanceView := redisRepo.NewBalanceView(redisClient)

	var rateProvider repository.RateProvider
	if cfg.Rates.URL != "" {
		rateProvider = rates.NewClient(cfg.Rates.URL, cfg.Rates.Timeout)
	} else {
		rateProvider = rates.NewStatic()
	}

	scheduler := services.NewQueueScheduler(queueStore)
	bus := usecase.NewBus(eventStore, queryCache, scheduler, zapLogger, stats)
	engine := workflow.NewEngine(workflowStore, scheduler, zapLogger, stats)

	ledgerService := ledgerUC.NewService(eventStore, snapshotStore, balanceView, zapLogger, cfg.Snapshots.Every)
	ledgerService.RegisterHandlers(bus)

	transferService := transferUC.NewService(eventStore, snapshotStore, rateProvider, engine, workflowStore, zapLogger)
	transferService.RegisterHandlers(bus)

	worker := services.NewQueueWorker(queueStore, bus, engine, mon, zapLogger, stats, services.WorkerConfig{
		Interval:   cfg.Queue.DrainInterval,
		BatchSize:  cfg.Queue.BatchSize,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
	})
	worker.Start()
	manager.Register("queue_worker", func(ctx context.Context) error {
		worker.Stop(ctx)
		return nil
	})

	projector := services.NewProjector(eventStore, balanceView, zapLogger, services.ProjectorConfig{
		Interval:  cfg.Projection.Interval,
		BatchSize: cfg.Projection.BatchSize,
	})
	projector.Start()
	manager.Register("projector", func(ctx context.Context) error {
		projector.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Account:  apiHandler.NewAccountHandler(bus, ctxAdapter, zapLogger, cfg.Cache.QueryTTL),
		Transfer: apiHandler.NewTransferHandler(bus, ctxAdapter, zapLogger),
		Workflow: apiHandler.NewWorkflowHandler(bus, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	var authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler
	if cfg.JWT.Secret != "" {
		authMiddleware = middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	}
	r := router.New(handlers, authMiddleware, router.Options{
		EnableMetrics: cfg.HTTP.EnableMetrics,
		Registry:      registry,
	})

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
