package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const systemPrompt = `You are a shopping assistant that answers questions about products in our inventory.

You will be given a question and a list of retrieved products. Each product has an id, a title, a description, a price and a rating.

Instructions:
- Answer only from the retrieved products. If they do not contain the answer, say that you could not find a matching product.
- Never invent products, prices or features.
- Refer to the products you used by their id.

Respond with a JSON object and nothing else:
{"answer": "<your answer>", "references": [{"id": "<product id>", "description": "<one sentence about the product>"}]}`

// Completer produces a chat completion with a given provider and model
type Completer interface {
	Complete(ctx context.Context, provider, model string, messages []llm.Message) (string, error)
}

// Result is the answer of the pipeline with the items it was grounded on
type Result struct {
	Answer      string
	UsedContext []models.RAGUsedContext
}

// Pipeline answers product questions from the vector index
type Pipeline struct {
	embedder  Embedder
	store     VectorStore
	completer Completer
	provider  string
	model     string
	topK      int
	logger    *zap.Logger
}

func NewPipeline(embedder Embedder, store VectorStore, completer Completer, provider, model string, topK int) *Pipeline {
	if topK <= 0 {
		topK = 5
	}
	return &Pipeline{
		embedder:  embedder,
		store:     store,
		completer: completer,
		provider:  provider,
		model:     model,
		topK:      topK,
		logger:    util.GetLogger(),
	}
}

type modelAnswer struct {
	Answer     string `json:"answer"`
	References []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	} `json:"references"`
}

// Run embeds the query, retrieves the closest items and asks the model to answer from them
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "rag.Pipeline.Run", attribute.Int("top_k", p.topK))
	defer span.End()

	result, err := p.run(ctx, query)
	if err != nil {
		util.RAGRequestsTotal.WithLabelValues("error").Inc()
		util.RecordError(span, err)
		return nil, err
	}
	util.RAGRequestsTotal.WithLabelValues("success").Inc()
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, query string) (*Result, error) {
	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query embedding, got %d", len(vectors))
	}

	retrieved, err := p.store.Search(ctx, vectors[0], p.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve items: %w", err)
	}
	util.RAGRetrievedItems.Observe(float64(len(retrieved)))

	raw, err := p.completer.Complete(ctx, p.provider, p.model, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: buildUserPrompt(query, retrieved)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	result := parseAnswer(raw, retrieved)
	p.logger.Info("RAG query answered",
		zap.Int("retrieved", len(retrieved)),
		zap.Int("used_context", len(result.UsedContext)))
	return result, nil
}

func buildUserPrompt(query string, retrieved []RetrievedItem) string {
	var b strings.Builder
	b.WriteString("Retrieved products:\n")
	for _, r := range retrieved {
		fmt.Fprintf(&b, "- id: %s\n  title: %s\n  description: %s\n", r.Item.ID, r.Item.Title, r.Item.Description)
		if r.Item.Price != nil {
			fmt.Fprintf(&b, "  price: %.2f\n", *r.Item.Price)
		}
		if r.Item.Rating > 0 {
			fmt.Fprintf(&b, "  rating: %.1f\n", r.Item.Rating)
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

// parseAnswer reads the model's JSON answer. Output that is not JSON is returned as the answer with no context.
func parseAnswer(raw string, retrieved []RetrievedItem) *Result {
	var parsed modelAnswer
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil || parsed.Answer == "" {
		return &Result{Answer: strings.TrimSpace(raw), UsedContext: []models.RAGUsedContext{}}
	}

	byID := make(map[string]models.CatalogItem, len(retrieved))
	for _, r := range retrieved {
		byID[r.Item.ID] = r.Item
	}

	used := make([]models.RAGUsedContext, 0, len(parsed.References))
	seen := make(map[string]bool, len(parsed.References))
	for _, ref := range parsed.References {
		item, ok := byID[ref.ID]
		if !ok || seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true

		description := ref.Description
		if description == "" {
			description = item.Description
		}
		used = append(used, models.RAGUsedContext{
			ImageURL:    item.ImageURL,
			Price:       item.Price,
			Description: description,
		})
	}

	return &Result{Answer: parsed.Answer, UsedContext: used}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
