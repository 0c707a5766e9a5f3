package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	provider string
	model    string
	messages []llm.Message
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, provider, model string, messages []llm.Message) (string, error) {
	f.provider, f.model, f.messages = provider, model, messages
	if f.err != nil {
		return "", f.err
	}
	return "Hello from " + provider, nil
}

type fakeRAG struct {
	query string
	err   error
}

func (f *fakeRAG) Run(ctx context.Context, query string) (*rag.Result, error) {
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	price := 19.99
	return &rag.Result{
		Answer: "The kettle costs 19.99.",
		UsedContext: []models.RAGUsedContext{
			{ImageURL: "https://img/kettle.jpg", Price: &price, Description: "Steel kettle"},
		},
	}, nil
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatProxiesToProvider(t *testing.T) {
	completer := &fakeCompleter{}
	router := newRouter(NewHandler(completer, nil))

	w := post(router, "/chat", `{
		"provider": "Groq",
		"model_name": "llama-3.3-70b-versatile",
		"messages": [
			{"role": "assistant", "content": "Hello! How can I assist today?"},
			{"role": "user", "content": "Hi"}
		]
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hello from Groq", resp.Message)
	assert.Equal(t, "llama-3.3-70b-versatile", completer.model)
	assert.Equal(t, []llm.Message{
		{Role: "assistant", Content: "Hello! How can I assist today?"},
		{Role: "user", Content: "Hi"},
	}, completer.messages)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestChatErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: Anthropic", llm.ErrInvalidProvider), http.StatusBadRequest},
		{fmt.Errorf("%w: Google", llm.ErrProviderNotConfigured), http.StatusServiceUnavailable},
		{&llm.APIError{Provider: "OpenAI", StatusCode: 429, Message: "rate limited"}, http.StatusBadGateway},
	}

	for _, tc := range cases {
		router := newRouter(NewHandler(&fakeCompleter{err: tc.err}, nil))
		w := post(router, "/chat", `{"provider": "x", "model_name": "y", "messages": [{"role": "user", "content": "hi"}]}`)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Contains(t, w.Body.String(), tc.err.Error())
	}
}

func TestChatRejectsInvalidBody(t *testing.T) {
	router := newRouter(NewHandler(&fakeCompleter{}, nil))

	w := post(router, "/chat", `{"provider": "OpenAI", "model_name": "gpt-5-mini", "messages": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(router, "/chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRAGEndpoint(t *testing.T) {
	ragRunner := &fakeRAG{}
	router := newRouter(NewHandler(&fakeCompleter{}, ragRunner))

	for _, path := range []string{"/rag", "/rag/"} {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{"query": "Is there a kettle?"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, path)

		var resp models.RAGResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "req-42", resp.RequestID)
		assert.Equal(t, "The kettle costs 19.99.", resp.Answer)
		require.Len(t, resp.UsedContext, 1)
		assert.Equal(t, 19.99, *resp.UsedContext[0].Price)
	}
	assert.Equal(t, "Is there a kettle?", ragRunner.query)
}

func TestRAGEndpointErrors(t *testing.T) {
	w := post(newRouter(NewHandler(&fakeCompleter{}, nil)), "/rag/", `{"query": "kettle"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = post(newRouter(NewHandler(&fakeCompleter{}, &fakeRAG{err: errors.New("qdrant down")})), "/rag/", `{"query": "kettle"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = post(newRouter(NewHandler(&fakeCompleter{}, &fakeRAG{})), "/rag/", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelsEndpoint(t *testing.T) {
	router := newRouter(NewHandler(&fakeCompleter{}, nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Providers []string            `json:"providers"`
		Models    map[string][]string `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Google", "Groq", "OpenAI"}, resp.Providers)
	assert.Equal(t, []string{"gpt-5-mini", "gpt-5-nano"}, resp.Models["OpenAI"])
}

func TestReadiness(t *testing.T) {
	h := NewHandler(&fakeCompleter{}, nil)
	h.AddReadinessCheck("database", func(ctx context.Context) error { return errors.New("connection refused") })
	router := newRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
