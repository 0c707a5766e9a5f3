package rag

import (
	"context"
	"strings"

	"shopping-assistant/internal/models"
)

// RetrievedItem is a catalog item returned by a similarity search
type RetrievedItem struct {
	Item  models.CatalogItem
	Score float32
}

// VectorStore indexes catalog items by embedding
type VectorStore interface {
	Upsert(ctx context.Context, items []models.CatalogItem, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]RetrievedItem, error)
	Close() error
}

// Payload keys shared by the vector backends
const (
	payloadID          = "parent_asin"
	payloadTitle       = "title"
	payloadDescription = "description"
	payloadImageURL    = "image_url"
	payloadPrice       = "price"
	payloadRating      = "average_rating"
)

// EmbeddingText is the text a catalog item is embedded and searched by
func EmbeddingText(item models.CatalogItem) string {
	parts := []string{item.Title}
	if item.Description != "" {
		parts = append(parts, item.Description)
	}
	parts = append(parts, item.Features...)
	return strings.Join(parts, "\n")
}
