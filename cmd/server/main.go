package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"journeytracker/internal/config"
	"journeytracker/internal/engine/scoring"
	"journeytracker/internal/events"
	"journeytracker/internal/handler"
	"journeytracker/internal/httpserver"
	"journeytracker/internal/mqhandler"
	"journeytracker/internal/repository"
	"journeytracker/internal/service"
	"journeytracker/pkg/db"
	"journeytracker/pkg/logger"
	"journeytracker/pkg/mq"
	"journeytracker/pkg/outbox"
	pkgredis "journeytracker/pkg/redis"
	"journeytracker/pkg/util"
)

const progressChangedQueue = "journey.progress.changed.q"

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting journeytracker...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
	)

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established successfully")

	// Redis
	rdb := pkgredis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// Repositories
	stepRepo := repository.NewStepRepository(dbConn, log)
	phaseRepo := repository.NewPhaseRepository(dbConn, log)
	companyRepo := repository.NewCompanyRepository(dbConn, log)
	progressRepo := repository.NewProgressRepository(dbConn, log)
	arrangementRepo := repository.NewArrangementRepository(dbConn, log)

	// Scoring engine with curated relevance tables
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	industryTags, businessTags, learningStyles, err := stepRepo.RelevanceTags(startupCtx)
	startupCancel()
	if err != nil {
		log.Fatal("Failed to load relevance tags", zap.Error(err))
	}
	scoringEngine := scoring.NewEngine(scoring.StaticLookup{
		IndustryTags:      industryTags,
		BusinessModelTags: businessTags,
		LearningStyles:    learningStyles,
	})

	// MQ publisher + outbox dispatcher
	log.Info("Initializing MQ publisher...")
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	if err := publisher.SetupDLQ(events.ProgressChanged); err != nil {
		log.Fatal("Failed to set up DLQ", zap.Error(err))
	}

	outboxRepo := outbox.NewRepository(dbConn)
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithMaxRetries(cfg.Outbox.MaxRetries).
		WithInterval(time.Duration(cfg.Outbox.IntervalMS) * time.Millisecond).
		WithBatchSize(cfg.Outbox.BatchSize)

	dispatcherCtx, dispatcherCancel := context.WithCancel(context.Background())
	defer dispatcherCancel()
	go dispatcher.Start(dispatcherCtx)
	log.Info("Outbox dispatcher started")

	// Services
	deduper := util.NewDeduper(rdb, 24*time.Hour, log)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)
	cache := service.NewRedisRecommendationCache(rdb, cfg.Recommendation.CacheTTL(), log)

	recommendationSvc := service.NewRecommendationService(stepRepo, companyRepo, progressRepo, scoringEngine, cache, log)
	progressSvc := service.NewProgressService(dbConn, stepRepo, phaseRepo, progressRepo, outboxRepo, deduper, log)
	arrangementSvc := service.NewArrangementService(arrangementRepo, stepRepo, log)

	// MQ Consumer for progress.changed
	log.Info("Initializing MQ consumer for progress.changed...",
		zap.String("queue", progressChangedQueue),
		zap.String("routing_key", "progress.changed"),
	)
	consumer, err := mq.NewConsumer(cfg.MQ.URL, progressChangedQueue, "progress.changed", log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()

	progressChangedHandler := mqhandler.NewProgressChangedHandler(progressSvc, cache, retryCounter, publisher, log)
	consumer.SetHandler(progressChangedHandler.Handle)

	go func() {
		log.Info("Starting progress.changed consumer...")
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("Progress consumer failed", zap.Error(err))
		}
	}()
	log.Info("progress.changed consumer started successfully")

	// HTTP Server
	log.Info("Initializing HTTP server...", zap.String("port", cfg.Server.Port))
	recommendationHandler := handler.NewRecommendationHandler(recommendationSvc, log)
	progressHandler := handler.NewProgressHandler(progressSvc, log)
	arrangementHandler := handler.NewArrangementHandler(arrangementSvc, log)

	router := httpserver.NewRouter(
		recommendationHandler,
		progressHandler,
		arrangementHandler,
		cfg.JWT.Secret,
		log,
		dbConn,
		consumer,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting on :" + cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("journeytracker is fully initialized and running",
		zap.String("http_port", cfg.Server.Port),
		zap.String("mq_queue", progressChangedQueue),
	)

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down journeytracker gracefully...")

	log.Info("Stopping MQ consumer...")
	consumer.Stop()

	log.Info("Stopping outbox dispatcher...")
	dispatcherCancel()

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Closing database connection...")
	dbConn.Close()

	log.Info("journeytracker shutdown complete")
}
