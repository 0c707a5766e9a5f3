package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Provider names accepted by the router
const (
	ProviderOpenAI = "OpenAI"
	ProviderGroq   = "Groq"
	ProviderGoogle = "Google"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

var (
	ErrInvalidProvider       = errors.New("invalid provider")
	ErrProviderNotConfigured = errors.New("provider is not configured")
	ErrEmptyResponse         = errors.New("empty response from model")
)

// Catalog lists the models offered for each provider
var Catalog = map[string][]string{
	ProviderOpenAI: {"gpt-5-mini", "gpt-5-nano"},
	ProviderGroq:   {"llama-3.3-70b-versatile"},
	ProviderGoogle: {"gemini-2.5-flash"},
}

// Providers returns the provider names of the catalog in a stable order
func Providers() []string {
	names := make([]string, 0, len(Catalog))
	for name := range Catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Message is one turn of a conversation
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model. Arguments is a JSON object.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a function the model may call. Parameters is a JSON schema.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ChatRequest struct {
	Model           string
	Messages        []Message
	Tools           []Tool
	MaxTokens       int
	Temperature     *float64
	ReasoningEffort string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Model        string
	Message      Message
	FinishReason string
	Usage        Usage
}

// Client talks to one LLM vendor
type Client interface {
	Provider() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// APIError is a non-success answer from an LLM vendor
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}
