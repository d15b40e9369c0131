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

	"github.com/gin-gonic/gin"

	"github.com/aghaPathan/noon-e-commerce/config"
	"github.com/aghaPathan/noon-e-commerce/internal/api"
	"github.com/aghaPathan/noon-e-commerce/internal/broker"
	"github.com/aghaPathan/noon-e-commerce/internal/redisclient"
	"github.com/aghaPathan/noon-e-commerce/internal/service"
	"github.com/aghaPathan/noon-e-commerce/internal/store"
	"github.com/aghaPathan/noon-e-commerce/internal/util"
	"github.com/aghaPathan/noon-e-commerce/internal/worker"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting price tracker service")

	tp, err := util.InitTracer("price-tracker", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	ingestService := service.NewIngestService(db, redisClient, eventPublisher, cfg.Business)
	alertService := service.NewAlertService(db, cfg.Business)
	statsService := service.NewStatsService(db, redisClient, cfg.Business)

	// The index is a derived cache; rebuild it from the observation
	// store before accepting traffic.
	ctx := context.Background()
	if err := ingestService.SyncLatestStateToRedis(ctx); err != nil {
		log.Printf("Failed to rebuild latest-state index: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	observationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicObservations, cfg.Kafka.ConsumerGroup)
	ingestWorker := worker.NewIngestWorker(observationConsumer, ingestService)
	go func() {
		if err := ingestWorker.Start(workerCtx); err != nil {
			log.Printf("Ingest worker error: %v", err)
		}
	}()

	retentionWorker := worker.NewRetentionWorker(db, redisClient, cfg.Business)
	go retentionWorker.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(ingestService, alertService, statsService, map[string]api.ReadinessProbe{
		"postgres": func() error { return db.GetDB().Ping() },
		"redis": func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(pingCtx)
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	ingestWorker.Stop()

	log.Println("Server exited")
}
