package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"shopping-assistant/internal/models"
	"shopping-assistant/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ingester embeds catalog items in batches and writes them to a vector store
type Ingester struct {
	embedder    Embedder
	store       VectorStore
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

func NewIngester(embedder Embedder, store VectorStore, batchSize, concurrency int) *Ingester {
	if batchSize <= 0 {
		batchSize = 64
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Ingester{
		embedder:    embedder,
		store:       store,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      util.GetLogger(),
	}
}

// Ingest indexes items and returns how many were written. The first failing batch cancels the rest.
func (in *Ingester) Ingest(ctx context.Context, items []models.CatalogItem) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)

	var written atomic.Int64
	for start := 0; start < len(items); start += in.batchSize {
		batch := items[start:min(start+in.batchSize, len(items))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, item := range batch {
				texts[i] = EmbeddingText(item)
			}

			vectors, err := in.embedder.Embed(ctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed batch: %w", err)
			}
			if err := in.store.Upsert(ctx, batch, vectors); err != nil {
				return err
			}

			written.Add(int64(len(batch)))
			in.logger.Debug("Batch indexed", zap.Int("items", len(batch)))
			return nil
		})
	}

	err := g.Wait()
	in.logger.Info("Catalog ingestion finished",
		zap.Int("requested", len(items)),
		zap.Int64("written", written.Load()),
		zap.Bool("failed", err != nil))
	return int(written.Load()), err
}

// LoadCatalog reads a stream of JSON catalog items, one object after another (JSON Lines).
// Items without an id are skipped.
func LoadCatalog(r io.Reader) ([]models.CatalogItem, error) {
	dec := json.NewDecoder(r)
	var items []models.CatalogItem
	for {
		var item models.CatalogItem
		err := dec.Decode(&item)
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode catalog item %d: %w", len(items)+1, err)
		}
		if item.ID == "" {
			continue
		}
		items = append(items, item)
	}
}
