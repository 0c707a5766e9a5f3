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

	"shopping-assistant/config"
	"shopping-assistant/internal/agent"
	"shopping-assistant/internal/broker"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/redisclient"
	"shopping-assistant/internal/service"
	"shopping-assistant/internal/store"
	"shopping-assistant/internal/util"
	"shopping-assistant/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, agent.AgentName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting warehouse manager agent")

	tp, err := util.InitTracer(agent.AgentName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
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
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.SessionTTL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReservations)
	defer producer.Close()
	logger.Info("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)
	warehouseService := service.NewWarehouseService(db, eventPublisher, redisClient, cfg.Redis.IdempotencyTTL)
	auditService := service.NewAuditService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	auditConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReservations, cfg.Kafka.ConsumerGroup)
	auditWorker := worker.NewReservationAuditWorker(auditConsumer, auditService)
	go func() {
		if err := auditWorker.Start(workerCtx); err != nil {
			logger.Error("Reservation audit worker error", zap.Error(err))
		}
	}()

	router, err := llm.NewRouterFromConfig(ctx, cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM providers: %v", err)
	}

	warehouseAgent := agent.NewWarehouseAgent(router, agent.NewToolbox(warehouseService), agent.Config{
		Provider:      cfg.Agent.Provider,
		Model:         cfg.Agent.Model,
		Temperature:   cfg.Agent.Temperature,
		MaxToolRounds: cfg.Agent.MaxToolRounds,
	})
	executor := agent.NewExecutor(warehouseAgent, warehouseService, redisClient)
	card := agent.NewAgentCard(cfg.Agent.Host, cfg.Agent.Port)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	handler := agent.NewHandler(card, executor, warehouseService, warehouseService, auditService)
	handler.SetupRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Agent.Port),
		Handler: engine,
	}

	go func() {
		logger.Info("Starting A2A server", zap.String("url", card.URL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := auditWorker.Stop(); err != nil {
		logger.Warn("Error stopping audit worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
