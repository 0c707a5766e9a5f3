package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shopping-assistant/config"
	"shopping-assistant/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultMaxTokens caps completions that do not set their own limit
const DefaultMaxTokens = 500

// Router dispatches requests to the client registered for a provider
type Router struct {
	clients   map[string]Client
	maxTokens int
	logger    *zap.Logger
}

// NewRouter creates a router with no clients registered
func NewRouter(maxTokens int) *Router {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Router{
		clients:   make(map[string]Client),
		maxTokens: maxTokens,
		logger:    util.GetLogger(),
	}
}

// NewRouterFromConfig registers a client for every provider that has an API key
func NewRouterFromConfig(ctx context.Context, cfg config.LLMConfig) (*Router, error) {
	r := NewRouter(cfg.MaxTokens)

	if cfg.OpenAIAPIKey != "" {
		r.Register(NewOpenAICompatClient(OpenAICompatConfig{
			Provider: ProviderOpenAI,
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Timeout:  cfg.Timeout,
		}))
	}
	if cfg.GroqAPIKey != "" {
		r.Register(NewOpenAICompatClient(OpenAICompatConfig{
			Provider: ProviderGroq,
			APIKey:   cfg.GroqAPIKey,
			BaseURL:  cfg.GroqBaseURL,
			Timeout:  cfg.Timeout,
		}))
	}
	if cfg.GoogleAPIKey != "" {
		gemini, err := NewGeminiClient(ctx, GeminiConfig{APIKey: cfg.GoogleAPIKey})
		if err != nil {
			return nil, err
		}
		r.Register(gemini)
	}

	if len(r.clients) == 0 {
		r.logger.Warn("No LLM provider API keys configured")
	}
	return r, nil
}

// Register adds or replaces the client for its provider
func (r *Router) Register(client Client) {
	r.clients[client.Provider()] = client
}

// Client returns the client of a provider
func (r *Router) Client(provider string) (Client, error) {
	if _, known := Catalog[provider]; !known {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProvider, provider)
	}
	client, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
	return client, nil
}

// Chat sends req to the provider's client, filling in provider defaults
func (r *Router) Chat(ctx context.Context, provider string, req *ChatRequest) (*ChatResponse, error) {
	ctx, span := util.StartSpan(ctx, "llm.Chat",
		attribute.String("provider", provider),
		attribute.String("model", req.Model))
	defer span.End()

	client, err := r.Client(provider)
	if err != nil {
		util.LLMRequestsTotal.WithLabelValues(provider, "rejected").Inc()
		return nil, err
	}

	// Google is called without an output cap.
	if req.MaxTokens == 0 && provider != ProviderGoogle {
		req.MaxTokens = r.maxTokens
	}
	if provider == ProviderOpenAI {
		if IsReasoningModel(req.Model) {
			if req.ReasoningEffort == "" {
				req.ReasoningEffort = "minimal"
			}
			// reasoning models only accept the default temperature
			req.Temperature = nil
		} else {
			req.ReasoningEffort = ""
		}
	}

	start := time.Now()
	resp, err := client.Chat(ctx, req)
	util.LLMRequestLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		util.LLMRequestsTotal.WithLabelValues(provider, "error").Inc()
		util.RecordError(span, err)
		r.logger.Error("LLM request failed",
			zap.String("provider", provider),
			zap.String("model", req.Model),
			zap.Error(err))
		return nil, err
	}

	util.LLMRequestsTotal.WithLabelValues(provider, "success").Inc()
	r.logger.Debug("LLM request completed",
		zap.String("provider", provider),
		zap.String("model", req.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return resp, nil
}

// IsReasoningModel reports whether an OpenAI model takes reasoning_effort (gpt-5 and o-series)
func IsReasoningModel(model string) bool {
	if strings.HasPrefix(model, "gpt-5") {
		return true
	}
	return len(model) > 1 && model[0] == 'o' && model[1] >= '0' && model[1] <= '9'
}

// Complete runs a plain conversation and returns the assistant text
func (r *Router) Complete(ctx context.Context, provider, model string, messages []Message) (string, error) {
	resp, err := r.Chat(ctx, provider, &ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
