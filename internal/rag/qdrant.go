package rag

import (
	"context"
	"fmt"
	"strings"

	"shopping-assistant/internal/models"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore keeps catalog items in a Qdrant collection
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

func NewQdrantStore(host string, port int, apiKey, collection string) (*QdrantStore, error) {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w", host, port, err)
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// EnsureCollection creates the collection with cosine distance when it does not exist yet
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, items []models.CatalogItem, vectors [][]float32) error {
	if len(items) != len(vectors) {
		return fmt.Errorf("got %d items but %d vectors", len(items), len(vectors))
	}
	if len(items) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(items))
	for i, item := range items {
		payload, err := itemPayload(item)
		if err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(item.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]RetrievedItem, error) {
	result, err := s.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	items := make([]RetrievedItem, 0, len(result.GetResult()))
	for _, point := range result.GetResult() {
		items = append(items, RetrievedItem{
			Item:  itemFromPayload(point.GetPayload()),
			Score: point.GetScore(),
		})
	}
	return items, nil
}

// Health reports whether the Qdrant server answers
func (s *QdrantStore) Health(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID derives a stable UUID from a product id, since Qdrant only accepts UUIDs or integers
func pointID(productID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(productID)).String()
}

func itemPayload(item models.CatalogItem) (map[string]*qdrant.Value, error) {
	fields := map[string]any{
		payloadID:          item.ID,
		payloadTitle:       item.Title,
		payloadDescription: item.Description,
		payloadImageURL:    item.ImageURL,
		payloadRating:      item.Rating,
	}
	if item.Price != nil {
		fields[payloadPrice] = *item.Price
	}

	payload := make(map[string]*qdrant.Value, len(fields))
	for key, value := range fields {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return nil, fmt.Errorf("failed to convert payload value for key %s: %w", key, err)
		}
		payload[key] = val
	}
	return payload, nil
}

func itemFromPayload(payload map[string]*qdrant.Value) models.CatalogItem {
	item := models.CatalogItem{
		ID:          payload[payloadID].GetStringValue(),
		Title:       payload[payloadTitle].GetStringValue(),
		Description: payload[payloadDescription].GetStringValue(),
		ImageURL:    payload[payloadImageURL].GetStringValue(),
		Rating:      payload[payloadRating].GetDoubleValue(),
	}

	if v, ok := payload[payloadPrice]; ok {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_DoubleValue:
			price := kind.DoubleValue
			item.Price = &price
		case *qdrant.Value_IntegerValue:
			price := float64(kind.IntegerValue)
			item.Price = &price
		}
	}
	return item
}
