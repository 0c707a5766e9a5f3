// Package chatclient talks to the chat API on behalf of the terminal front end.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"shopping-assistant/internal/models"
	"shopping-assistant/internal/util"

	"go.uber.org/zap"
)

const (
	MsgConnection      = "Connection error. Please check your network connection."
	MsgTimeout         = "The request timed out. Please try again later."
	MsgInvalidResponse = "Invalid response format from server"
)

// Error is returned for every failed call. Message is safe to show to the user.
type Error struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client calls the chat and RAG endpoints of the API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the API at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// Chat sends the whole conversation and returns the assistant reply
func (c *Client) Chat(ctx context.Context, provider, model string, messages []models.ChatMessage) (string, error) {
	req := models.ChatRequest{
		Provider:  provider,
		ModelName: model,
		Messages:  messages,
	}

	var resp models.ChatResponse
	if err := c.post(ctx, "/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Query asks the RAG endpoint a product question
func (c *Client) Query(ctx context.Context, query string) (*models.RAGResponse, error) {
	var resp models.RAGResponse
	if err := c.post(ctx, "/rag/", models.RAGRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return unexpected(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return unexpected(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("API call failed", zap.String("path", path), zap.Error(err))
		return classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Message:    serverMessage(data),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s returned %d", path, resp.StatusCode),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Message: MsgInvalidResponse, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// serverMessage picks the user-facing text out of an error body
func serverMessage(data []byte) string {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return MsgInvalidResponse
	}
	for _, key := range []string{"message", "error", "detail"} {
		if msg, ok := body[key].(string); ok && msg != "" {
			return msg
		}
	}
	return MsgInvalidResponse
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Message: MsgTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Message: MsgTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{Message: MsgConnection, Err: err}
	}
	return unexpected(err)
}

func unexpected(err error) error {
	return &Error{Message: "An unexpected error occurred: " + err.Error(), Err: err}
}
