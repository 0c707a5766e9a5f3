package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shopping-assistant/config"
	"shopping-assistant/internal/rag"
	"shopping-assistant/internal/util"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
)

type CLI struct {
	File        string `arg:"" help:"JSON Lines catalog file to index." type:"existingfile"`
	Collection  string `help:"Qdrant collection (defaults to QDRANT_COLLECTION)."`
	Dimension   int    `help:"Embedding vector size." default:"1536"`
	BatchSize   int    `name:"batch-size" help:"Items embedded per request (defaults to INGEST_BATCH_SIZE)."`
	Concurrency int    `help:"Batches embedded in parallel (defaults to INGEST_CONCURRENCY)."`
}

func (c *CLI) Run(cfg *config.Config) error {
	logger := util.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	items, err := rag.LoadCatalog(f)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	logger.Info("Loaded catalog", zap.String("file", c.File), zap.Int("items", len(items)))

	collection := c.Collection
	if collection == "" {
		collection = cfg.RAG.Collection
	}
	store, err := rag.NewQdrantStore(cfg.RAG.QdrantHost, cfg.RAG.QdrantPort, cfg.RAG.QdrantAPIKey, collection)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx, c.Dimension); err != nil {
		return err
	}

	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = cfg.RAG.IngestBatchSize
	}
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = cfg.RAG.IngestConcurrency
	}

	embedder := rag.NewOpenAIEmbedder(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, cfg.RAG.EmbeddingModel, cfg.LLM.Timeout)
	written, err := rag.NewIngester(embedder, store, batchSize, concurrency).Ingest(ctx, items)
	logger.Info("Ingestion finished", zap.String("collection", collection), zap.Int("written", written))
	return err
}

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, "ingest"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("ingest"),
		kong.Description("Embed a product catalog and index it in Qdrant"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(cfg))
}
