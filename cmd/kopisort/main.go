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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rookgm/kopisort/config"
	"github.com/rookgm/kopisort/internal/auth"
	"github.com/rookgm/kopisort/internal/cache"
	"github.com/rookgm/kopisort/internal/classifier"
	"github.com/rookgm/kopisort/internal/events"
	handler "github.com/rookgm/kopisort/internal/handler/http"
	"github.com/rookgm/kopisort/internal/metrics"
	"github.com/rookgm/kopisort/internal/middleware"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/rookgm/kopisort/internal/proofstore"
	"github.com/rookgm/kopisort/internal/repository"
	"github.com/rookgm/kopisort/internal/repository/postgres"
	"github.com/rookgm/kopisort/internal/retry"
	"github.com/rookgm/kopisort/internal/service"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// newLogger creates logger with log level
func newLogger(level string) (*zap.Logger, error) {

	loggerLvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	loggerCfg := zap.NewProductionConfig()
	loggerCfg.Level = loggerLvl

	return loggerCfg.Build()
}

func main() {

	// create new config
	cfg, err := config.New(os.Args[1:])
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT secret is not set")
	}

	// stop on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN,
		postgres.WithLogger(logger),
		postgres.WithTimeZone(cfg.TimeZone),
		postgres.WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			OnRetry: func(int, error) {
				m.StorageRetry()
			},
		}))
	if err != nil {
		logger.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	err = db.Migrate()
	if err != nil {
		logger.Fatal("Error migrating database", zap.Error(err))
	}

	// order cache
	var orderCache service.OrderCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb := cache.NewClient(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is unavailable, reads go to database", zap.Error(err))
		}
		orderCache = cache.NewOrderCache(rdb, cache.DefaultOrderTTL)
	}

	// event publisher
	publisher, err := events.Open(events.Config{
		Driver:       cfg.EventsDriver,
		RabbitURL:    cfg.RabbitMQURL,
		Exchange:     cfg.RabbitExchange,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
	})
	if err != nil {
		logger.Fatal("Error initializing event publisher", zap.Error(err))
	}
	defer publisher.Close()

	// payment proofs
	var proofs service.ProofStore = proofstore.Passthrough{}
	if cfg.S3Bucket != "" {
		proofs, err = proofstore.New(ctx, proofstore.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			PathStyle:       cfg.S3Endpoint != "",
		})
		if err != nil {
			logger.Fatal("Error initializing proof store", zap.Error(err))
		}
	}

	token := auth.NewAuthToken([]byte(cfg.JWTSecret))

	// dependency injection
	// notifications
	notificationRepo := repository.NewNotificationRepository(db)
	notifier := service.NewNotificationDispatcher(notificationRepo, db, publisher, m, logger)

	// order
	orderRepo := repository.NewOrderRepository(db)
	orderService := service.NewOrderService(orderRepo, db, notifier, orderCache, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)

	// batch
	batchRepo := repository.NewBatchRepository(db)
	batchService := service.NewBatchService(batchRepo, orderRepo, db, notifier, classifier.NewClient(cfg.ClassifierURL), logger)
	batchHandler := handler.NewBatchHandler(batchService, logger)

	// sorting
	sortingRepo := repository.NewSortingRepository(db)
	sortingService := service.NewSortingService(sortingRepo, orderRepo, db, logger)
	sortingHandler := handler.NewSortingHandler(sortingService, logger)

	// payment
	paymentRepo := repository.NewPaymentRepository(db)
	paymentService := service.NewPaymentService(paymentRepo, orderRepo, db, notifier, orderCache, proofs, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)

	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Metrics(m))
	router.Use(chimw.Recoverer)

	router.Handle("/metrics", m.Handler())
	router.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// routes that require authentication
	router.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(handler.AuthMiddleware(token))

		r.Post("/orders", orderHandler.CreateOrder())
		r.Get("/orders", orderHandler.ListOrders())
		r.Get("/orders/{id}", orderHandler.GetOrder())
		r.Delete("/orders/{id}", orderHandler.DeleteOrder())
		r.Patch("/orders/{id}/cancel", orderHandler.CancelOrder())
		r.Get("/orders/{id}/batches", batchHandler.ListBatches())
		r.Get("/orders/{id}/sorting-result", sortingHandler.GetResult())
		r.Get("/orders/{id}/sorting-history", sortingHandler.GetHistory())
		r.Get("/batches/history", batchHandler.BatchHistory())
		r.Get("/sorting/results", sortingHandler.ListResults())
		r.Get("/sorting/dashboard", sortingHandler.GetDashboard())
		r.Post("/payments", paymentHandler.SubmitPayment())
		r.Get("/payments", paymentHandler.ListPayments())
		r.Get("/payments/order/{id}", paymentHandler.GetOrderPayment())
		r.Get("/payments/{id}", paymentHandler.GetPayment())

		// operator routes
		r.Group(func(admin chi.Router) {
			admin.Use(handler.RequireRole(models.RoleAdmin))

			admin.Put("/orders/{id}/assign-machine", orderHandler.AssignMachine())
			admin.Put("/orders/{id}/status", orderHandler.UpdateStatus())
			admin.Patch("/orders/{id}/status", orderHandler.UpdateStatus())
			admin.Post("/orders/{id}/batches/auto-generate", batchHandler.AutoGenerate())
			admin.Post("/batches", batchHandler.CreateBatch())
			admin.Put("/batches/{id}", batchHandler.UpdateBatch())
			admin.Post("/batches/{id}/complete", batchHandler.CompleteBatch())
			admin.Post("/batches/{id}/classify", batchHandler.ClassifySample())
			admin.Post("/sorting/results", sortingHandler.RecordResult())
			admin.Post("/payments/{id}/verify", paymentHandler.VerifyPayment())
			admin.Post("/payments/{id}/reject", paymentHandler.RejectPayment())
		})
	})

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down server", zap.Error(err))
		}
	}()

	logger.Info("Running server", zap.String("addr", cfg.ServerAddr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Error starting server", zap.Error(err))
	}

	logger.Info("Server stopped")
}
