package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quote-service/config"
	"quote-service/internal/api"
	"quote-service/internal/artifact"
	"quote-service/internal/audit"
	"quote-service/internal/broker"
	"quote-service/internal/document"
	"quote-service/internal/draft"
	"quote-service/internal/notify"
	"quote-service/internal/permission"
	"quote-service/internal/redisclient"
	"quote-service/internal/service"
	"quote-service/internal/store"
	"quote-service/internal/tasks"
	"quote-service/internal/util"
	"quote-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting quote service")

	tp, err := util.InitTracer("quote-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	ctx := context.Background()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	artifacts, err := artifact.NewStore(artifact.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("Failed to create artifact store", zap.Error(err))
	}
	if err := artifacts.EnsureBucket(ctx); err != nil {
		logger.Fatal("Failed to prepare quote bucket", zap.Error(err))
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	notificationProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer notificationProducer.Close()
	logger.Info("Kafka producers initialized")

	permissions := permission.NewCachedStore(db, redisClient.GetClient(), cfg.Business.PermissionCacheTTL)

	layout := document.DefaultLayout()
	branding := document.Branding{
		CompanyName: cfg.Business.CompanyName,
		Address:     cfg.Business.CompanyAddress,
		Phone:       cfg.Business.CompanyPhone,
		Email:       cfg.Business.CompanyEmail,
		Website:     cfg.Business.CompanyWebsite,
		Currency:    cfg.Business.Currency,
	}
	legal := cfg.Business.LegalTerms
	if len(legal) == 0 {
		legal = document.DefaultLegalTerms
	}
	generator := document.NewGenerator(layout,
		document.NewRenderer(layout, branding, document.NewHTTPImageSource(cfg.Business.ImageTimeout)),
		legal)

	dispatcher := notify.NewDispatcher(notify.NewKafkaSender(notificationProducer), notify.Config{
		Company:         cfg.Business.CompanyName,
		Currency:        cfg.Business.Currency,
		Attempts:        cfg.Business.NotifyAttempts,
		InitialInterval: cfg.Business.NotifyBackoff,
		Timeout:         cfg.Business.NotifyTimeout,
	})

	runner := tasks.NewRunner()
	orderService := service.NewOrderService(service.Components{
		Repo:        db,
		Permissions: permission.NewResolver(permissions),
		PermCache:   permissions,
		Audit:       audit.NewLogger(db),
		Formatter:   audit.NewFormatter(cfg.Business.Currency),
		Events:      broker.NewEventPublisher(producer),
		Idempotency: redisClient,
		Generator:   generator,
		Artifacts:   artifacts,
		Notifier:    dispatcher,
		Drafts:      draft.NewStore(redisClient.GetClient(), cfg.Business.DraftTTL),
		Tasks:       runner,
	}, service.Settings{
		OrderNumberPrefix: cfg.Business.OrderNumberPrefix,
		IdempotencyTTL:    cfg.Business.IdempotencyTTL,
		DocumentTimeout:   cfg.Business.DocumentTimeout,
		NotifyTimeout:     cfg.Business.NotifyTimeout,
		LinkTTL:           cfg.Storage.LinkTTL,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	documentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	documentWorker := worker.NewDocumentWorker(documentConsumer, orderService, db, redisClient, cfg.Business.DocumentLockTTL)
	go func() {
		if err := documentWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Document worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(orderService, map[string]api.ReadinessCheck{
		"database": db.Ping,
		"redis":    redisClient.Ping,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := documentWorker.Stop(); err != nil {
		logger.Warn("Error stopping document worker", zap.Error(err))
	}

	if err := runner.Wait(shutdownCtx); err != nil {
		logger.Warn("Background tasks did not finish", zap.Error(err))
	}

	logger.Info("Server exited")
}
