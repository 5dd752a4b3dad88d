package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"consultly/config"
	"consultly/cron"
	"consultly/database"
	catalogRepo "consultly/database/repository/catalog"
	consultationRepo "consultly/database/repository/consultation"
	"consultly/handlers"
	"consultly/middleware"
	"consultly/routes"
	"consultly/services/consultation"
	"consultly/services/notification"
	"consultly/services/payment"
	"consultly/services/pricing"
	"consultly/utils"
)

const webhookEventTTL = 72 * time.Hour

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	if err := database.InitDB(logger); err != nil {
		logger.Fatal("main: database unavailable", zap.Error(err))
	}
	if err := utils.InitCache(); err != nil {
		logger.Fatal("main: cache unavailable", zap.Error(err))
	}

	// repositories.
	db := database.Database()
	consultations, err := consultationRepo.NewMongoConsultationRepo(db)
	if err != nil {
		logger.Fatal("main: failed to prepare consultations collection", zap.Error(err))
	}
	catalog := catalogRepo.NewMongoCatalogRepo(db)

	// services.
	engine := pricing.NewEngine(logger,
		pricing.WithMinimumCharge(config.AppConfig.PricingMinCharge),
		pricing.WithLocation(config.PricingLocation()),
	)
	processor, err := payment.NewStripeProcessor(config.AppConfig.StripeKey, nil, logger)
	if err != nil {
		logger.Fatal("main: payment processor unavailable", zap.Error(err))
	}

	queueOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
	queue := asynq.NewClient(queueOpts)
	defer queue.Close()
	dispatcher := notification.NewDispatcher(queue, logger)

	svc := consultation.NewService(consultation.Deps{
		Consultations:    consultations,
		Catalog:          catalog,
		Pricing:          engine,
		Processor:        processor,
		Notifier:         dispatcher,
		Refunds:          dispatcher,
		Logger:           logger,
		PaymentTimeout:   config.AppConfig.PaymentTimeout,
		RefundRetryDelay: config.AppConfig.RefundRetryDelay,
	})

	// background worker.
	var push cron.PushDeliverer
	if fcm, err := utils.FirebaseInit(context.Background()); err != nil {
		logger.Warn("main: push notifications disabled", zap.Error(err))
	} else if sender, err := notification.NewPushSender(catalog, fcm, logger); err != nil {
		logger.Warn("main: push notifications disabled", zap.Error(err))
	} else {
		push = sender
	}
	worker := cron.NewWorker(push, svc, logger).Start()

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	queueRedis := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer queueRedis.Close()
	utils.StartHealthMonitor(monitorCtx, time.Minute, []*redis.Client{utils.GetCacheClient(), queueRedis}, database.MongoClient)

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin, logger))

	handlerBundle := &handlers.HandlerBundle{
		Consultations: handlers.NewConsultationHandler(svc, logger),
		Webhooks: handlers.NewWebhookHandler(svc,
			utils.NewEventDeduper(utils.GetCacheClient(), "stripe:event:", webhookEventTTL),
			config.AppConfig.StripeWebhookSecret, logger),
	}
	routes.RegisterRoutes(router, handlerBundle, config.AppConfig.CORSAllowedOrigins)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Info("Starting server", zap.String("addr", srv.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("main: server failed to start", zap.Error(err))
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}
	worker.Shutdown()
	if err := database.Disconnect(ctx); err != nil {
		logger.Warn("main: mongo disconnect failed", zap.Error(err))
	}

	logger.Info("main: server stopped gracefully")
}
