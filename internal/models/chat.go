package models

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one turn of a conversation as exchanged with the chat API
type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

// ChatRequest selects a provider and model for a conversation
type ChatRequest struct {
	Provider  string        `json:"provider" binding:"required"`
	ModelName string        `json:"model_name" binding:"required"`
	Messages  []ChatMessage `json:"messages" binding:"required,min=1,dive"`
}

// ChatResponse carries the assistant reply
type ChatResponse struct {
	Message string `json:"message"`
}
