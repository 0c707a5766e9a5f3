package rag

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"shopping-assistant/internal/models"

	"github.com/philippgille/chromem-go"
)

// MemoryStore keeps catalog items in an in-process chromem collection.
// Vectors are always computed by the Embedder, never by chromem itself.
type MemoryStore struct {
	collection *chromem.Collection
}

func NewMemoryStore(name string) (*MemoryStore, error) {
	precomputed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embeddings must be computed before insertion")
	}

	collection, err := chromem.NewDB().GetOrCreateCollection(name, nil, precomputed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return &MemoryStore{collection: collection}, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, items []models.CatalogItem, vectors [][]float32) error {
	if len(items) != len(vectors) {
		return fmt.Errorf("got %d items but %d vectors", len(items), len(vectors))
	}
	if len(items) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(items))
	for i, item := range items {
		metadata := map[string]string{
			payloadID:       item.ID,
			payloadTitle:    item.Title,
			payloadImageURL: item.ImageURL,
			payloadRating:   strconv.FormatFloat(item.Rating, 'f', -1, 64),
		}
		if item.Price != nil {
			metadata[payloadPrice] = strconv.FormatFloat(*item.Price, 'f', -1, 64)
		}
		docs = append(docs, chromem.Document{
			ID:        item.ID,
			Content:   item.Description,
			Metadata:  metadata,
			Embedding: vectors[i],
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, vector []float32, topK int) ([]RetrievedItem, error) {
	// chromem rejects requests for more results than documents.
	n := min(topK, s.collection.Count())
	if n <= 0 {
		return []RetrievedItem{}, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	items := make([]RetrievedItem, 0, len(results))
	for _, r := range results {
		item := models.CatalogItem{
			ID:          r.Metadata[payloadID],
			Title:       r.Metadata[payloadTitle],
			Description: r.Content,
			ImageURL:    r.Metadata[payloadImageURL],
		}
		if rating, err := strconv.ParseFloat(r.Metadata[payloadRating], 64); err == nil {
			item.Rating = rating
		}
		if raw, ok := r.Metadata[payloadPrice]; ok {
			if price, err := strconv.ParseFloat(raw, 64); err == nil {
				item.Price = &price
			}
		}
		items = append(items, RetrievedItem{Item: item, Score: r.Similarity})
	}
	return items, nil
}

func (s *MemoryStore) Close() error { return nil }
