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
	"shopping-assistant/internal/api"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/rag"
	"shopping-assistant/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const embeddingDimension = 1536

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, "shopping-api"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shopping assistant API")

	tp, err := util.InitTracer("shopping-api", cfg.Observ.JaegerEndpoint)
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

	router, err := llm.NewRouterFromConfig(ctx, cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM providers: %v", err)
	}

	embedder := rag.NewOpenAIEmbedder(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, cfg.RAG.EmbeddingModel, cfg.LLM.Timeout)

	var readiness []namedCheck
	var vectors rag.VectorStore
	switch cfg.RAG.VectorBackend {
	case "memory":
		memory, err := rag.NewMemoryStore(cfg.RAG.Collection)
		if err != nil {
			log.Fatalf("Failed to create in-memory vector store: %v", err)
		}
		vectors = memory
	default:
		qdrantStore, err := rag.NewQdrantStore(cfg.RAG.QdrantHost, cfg.RAG.QdrantPort, cfg.RAG.QdrantAPIKey, cfg.RAG.Collection)
		if err != nil {
			log.Fatalf("Failed to connect to Qdrant: %v", err)
		}
		if err := qdrantStore.EnsureCollection(ctx, embeddingDimension); err != nil {
			logger.Warn("Could not ensure Qdrant collection", zap.Error(err))
		}
		readiness = append(readiness, namedCheck{name: "qdrant", check: qdrantStore.Health})
		vectors = qdrantStore
	}
	defer vectors.Close()

	if cfg.RAG.SeedFile != "" {
		if err := seedCatalog(ctx, cfg, embedder, vectors); err != nil {
			logger.Error("Failed to seed catalog", zap.String("file", cfg.RAG.SeedFile), zap.Error(err))
		}
	}

	pipeline := rag.NewPipeline(embedder, vectors, router, cfg.RAG.Provider, cfg.RAG.Model, cfg.RAG.TopK)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	handler := api.NewHandler(router, pipeline)
	for _, rc := range readiness {
		handler.AddReadinessCheck(rc.name, rc.check)
	}
	handler.SetupRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
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

	logger.Info("Server exited")
}

type namedCheck struct {
	name  string
	check api.ReadinessCheck
}

func seedCatalog(ctx context.Context, cfg *config.Config, embedder rag.Embedder, vectors rag.VectorStore) error {
	f, err := os.Open(cfg.RAG.SeedFile)
	if err != nil {
		return err
	}
	defer f.Close()

	items, err := rag.LoadCatalog(f)
	if err != nil {
		return err
	}

	written, err := rag.NewIngester(embedder, vectors, cfg.RAG.IngestBatchSize, cfg.RAG.IngestConcurrency).Ingest(ctx, items)
	if err != nil {
		return err
	}

	util.GetLogger().Info("Seeded catalog", zap.Int("items", written))
	return nil
}
