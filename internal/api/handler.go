package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/rag"
	"shopping-assistant/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Completer runs a chat completion with the given provider and model
type Completer interface {
	Complete(ctx context.Context, provider, model string, messages []llm.Message) (string, error)
}

// RAGRunner answers a product question from the catalog index
type RAGRunner interface {
	Run(ctx context.Context, query string) (*rag.Result, error)
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	llm    Completer
	rag    RAGRunner
	ready  map[string]ReadinessCheck
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler. rag may be nil when no vector index is configured.
func NewHandler(completer Completer, ragRunner RAGRunner) *Handler {
	return &Handler{
		llm:    completer,
		rag:    ragRunner,
		ready:  make(map[string]ReadinessCheck),
		logger: util.GetLogger(),
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.ready[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(util.PrometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/models", h.listModels)
	router.POST("/chat", h.chat)

	ragGroup := router.Group("/rag")
	{
		ragGroup.POST("", h.ragQuery)
		ragGroup.POST("/", h.ragQuery)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failures := gin.H{}
	for name, check := range h.ready {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not ready",
			"failures": failures,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": llm.Providers(),
		"models":    llm.Catalog,
	})
}

func (h *Handler) chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := h.llm.Complete(c.Request.Context(), req.Provider, req.ModelName, messages)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, llm.ErrInvalidProvider):
			status = http.StatusBadRequest
		case errors.Is(err, llm.ErrProviderNotConfigured):
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("Chat completion failed",
			zap.String("request_id", RequestIDFrom(c)),
			zap.String("provider", req.Provider),
			zap.Error(err))
		c.JSON(status, gin.H{
			"error":   "Failed to get a reply from the model",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.ChatResponse{Message: reply})
}

func (h *Handler) ragQuery(c *gin.Context) {
	var req models.RAGRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if h.rag == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "RAG pipeline is not configured",
		})
		return
	}

	result, err := h.rag.Run(c.Request.Context(), req.Query)
	if err != nil {
		h.logger.Error("RAG pipeline failed",
			zap.String("request_id", RequestIDFrom(c)),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to answer the query",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.RAGResponse{
		RequestID:   RequestIDFrom(c),
		Answer:      result.Answer,
		UsedContext: result.UsedContext,
	})
}
