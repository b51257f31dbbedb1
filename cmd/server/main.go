package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appprocessing "github.com/ledgerscan/backend/internal/application/processing"
	"github.com/ledgerscan/backend/internal/domain/shared"
	"github.com/ledgerscan/backend/internal/infrastructure/cache"
	"github.com/ledgerscan/backend/internal/infrastructure/config"
	"github.com/ledgerscan/backend/internal/infrastructure/docintel"
	"github.com/ledgerscan/backend/internal/infrastructure/logger"
	"github.com/ledgerscan/backend/internal/infrastructure/persistence"
	"github.com/ledgerscan/backend/internal/infrastructure/storage"
	"github.com/ledgerscan/backend/internal/interfaces/http/handler"
	"github.com/ledgerscan/backend/internal/interfaces/http/middleware"
	"github.com/ledgerscan/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ledgerscan backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Analysis provider client
	analyzer := docintel.NewClient(cfg.Analysis, log)

	// Document fetcher: local paths always work, s3:// only when configured
	var remote *storage.S3Fetcher
	if cfg.Storage.AccessKeyID != "" {
		remote, err = storage.NewS3Fetcher(cfg.Storage, storage.WithS3Logger(log))
		if err != nil {
			log.Fatal("Failed to configure object storage", zap.Error(err))
		}
		log.Info("Object storage configured", zap.String("bucket", cfg.Storage.Bucket))
	}
	fetcher := storage.NewFetcher(storage.NewLocalFetcher(), remote)

	// Pipeline wiring
	tolerance, err := decimal.NewFromString(cfg.Pipeline.ArithmeticTolerance)
	if err != nil {
		log.Fatal("Invalid pipeline.arithmetic_tolerance", zap.Error(err))
	}
	scope := persistence.NewGormTransactionScope(db.DB)
	customers := persistence.NewGormCustomerRepository(db.DB)
	accounts := persistence.NewGormExpenseAccountRepository(db.DB)
	persister := appprocessing.NewPersister(scope, accounts, tolerance, log)
	batchService := appprocessing.NewBatchService(fetcher, analyzer, persister, customers, appprocessing.PipelineConfig{
		Concurrency:             cfg.Pipeline.Concurrency,
		DocumentTimeout:         cfg.Pipeline.DocumentTimeout,
		ClassificationThreshold: cfg.Pipeline.ClassificationThreshold,
		ReviewThreshold:         cfg.Pipeline.ReviewThreshold,
		ArithmeticTolerance:     tolerance,
		ConfidencePenalty:       cfg.Pipeline.ConfidencePenalty,
		DefaultCurrency:         cfg.Pipeline.DefaultCurrency,
		BulkSize:                cfg.Pipeline.BulkSize,
	}, log)

	// Idempotency store for duplicate batch submissions
	idempotencyStore := cache.NewIdempotencyStore(cfg.Redis, log)
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// HTTP engine and middleware
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	engine.GET("/healthz", handler.NewHealthHandler(db).Healthz)

	processHandler := handler.NewProcessHandler(batchService, idempotencyStore, shared.DefaultIdempotencyConfig(), log)
	router.NewRouter(engine).
		Register(processHandler).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
