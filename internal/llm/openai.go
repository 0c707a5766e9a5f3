package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAICompatConfig configures a client for an OpenAI-compatible chat completions API
type OpenAICompatConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// OpenAICompatClient serves OpenAI and Groq, which share the chat completions wire format
type OpenAICompatClient struct {
	cfg    OpenAICompatConfig
	client *http.Client
}

func NewOpenAICompatClient(cfg OpenAICompatConfig) *OpenAICompatClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAICompatClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *OpenAICompatClient) Provider() string { return c.cfg.Provider }

type oaFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Arguments   string         `json:"arguments,omitempty"`
}

type oaTool struct {
	Type     string     `json:"type"`
	Function oaFunction `json:"function"`
}

type oaToolCall struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Function oaFunction `json:"function"`
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	Name       string       `json:"name,omitempty"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

type oaRequest struct {
	Model               string      `json:"model"`
	Messages            []oaMessage `json:"messages"`
	Tools               []oaTool    `json:"tools,omitempty"`
	MaxCompletionTokens int         `json:"max_completion_tokens,omitempty"`
	Temperature         *float64    `json:"temperature,omitempty"`
	ReasoningEffort     string      `json:"reasoning_effort,omitempty"`
}

type oaResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      oaMessage `json:"message"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type oaErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends a non-streaming chat completion request
func (c *OpenAICompatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body := oaRequest{
		Model:               req.Model,
		Messages:            make([]oaMessage, 0, len(req.Messages)),
		MaxCompletionTokens: req.MaxTokens,
		Temperature:         req.Temperature,
		ReasoningEffort:     req.ReasoningEffort,
	}
	for _, msg := range req.Messages {
		om := oaMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, oaToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: oaFunction{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		body.Messages = append(body.Messages, om)
	}
	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, oaTool{
			Type: "function",
			Function: oaFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.cfg.Provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			Provider:   c.cfg.Provider,
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	var oaResp oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", c.cfg.Provider, err)
	}
	if len(oaResp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := oaResp.Choices[0]
	result := &ChatResponse{
		Model:        oaResp.Model,
		FinishReason: choice.FinishReason,
		Usage:        oaResp.Usage,
		Message: Message{
			Role:    RoleAssistant,
			Content: choice.Message.Content,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		result.Message.ToolCalls = append(result.Message.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return err.Error()
	}
	var body oaErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
