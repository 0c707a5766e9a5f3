package chatclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/models"
)

// Greeting opens every conversation
const Greeting = "Hello! How can I assist today?"

// Session modes
const (
	ModeChat = "chat"
	ModeRAG  = "rag"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownModel    = errors.New("unknown model")
	ErrUnknownMode     = errors.New("unknown mode")
)

const helpText = `Commands:
  /provider <name>  switch provider (OpenAI, Groq, Google)
  /model <name>     switch model of the current provider
  /mode <chat|rag>  switch between chat and product search
  /reset            start a new conversation
  /quit             exit`

// Backend is the part of the API the session talks to
type Backend interface {
	Chat(ctx context.Context, provider, model string, messages []models.ChatMessage) (string, error)
	Query(ctx context.Context, query string) (*models.RAGResponse, error)
}

// Session holds one terminal conversation. The message list lives client side.
type Session struct {
	backend  Backend
	provider string
	model    string
	mode     string
	messages []models.ChatMessage
}

// NewSession starts a conversation. An empty model selects the first model of the provider.
func NewSession(backend Backend, provider, model, mode string) (*Session, error) {
	s := &Session{backend: backend}
	if err := s.setProvider(provider); err != nil {
		return nil, err
	}
	if model != "" {
		if err := s.setModel(model); err != nil {
			return nil, err
		}
	}
	if err := s.setMode(mode); err != nil {
		return nil, err
	}
	s.Reset()
	return s, nil
}

// Provider returns the selected provider
func (s *Session) Provider() string { return s.provider }

// Model returns the selected model
func (s *Session) Model() string { return s.model }

// Mode returns the selected mode
func (s *Session) Mode() string { return s.mode }

// Messages returns the conversation so far
func (s *Session) Messages() []models.ChatMessage {
	return append([]models.ChatMessage(nil), s.messages...)
}

// Reset drops the conversation and starts again with the greeting
func (s *Session) Reset() {
	s.messages = []models.ChatMessage{{Role: models.RoleAssistant, Content: Greeting}}
}

// Handle processes one line of input and returns the text to print.
// quit is true when the user asked to leave.
func (s *Session) Handle(ctx context.Context, line string) (output string, quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if strings.HasPrefix(line, "/") {
		return s.command(line)
	}

	if s.mode == ModeRAG {
		return s.query(ctx, line), false
	}
	return s.chat(ctx, line), false
}

func (s *Session) chat(ctx context.Context, prompt string) string {
	s.messages = append(s.messages, models.ChatMessage{Role: models.RoleUser, Content: prompt})

	reply, err := s.backend.Chat(ctx, s.provider, s.model, s.messages)
	if err != nil {
		// drop the unanswered prompt so the user can retry it
		s.messages = s.messages[:len(s.messages)-1]
		return errorLine(err)
	}

	s.messages = append(s.messages, models.ChatMessage{Role: models.RoleAssistant, Content: reply})
	return reply
}

func (s *Session) query(ctx context.Context, query string) string {
	resp, err := s.backend.Query(ctx, query)
	if err != nil {
		return errorLine(err)
	}

	var b strings.Builder
	b.WriteString(resp.Answer)
	if len(resp.UsedContext) > 0 {
		b.WriteString("\n\nItems used to answer:")
		for _, item := range resp.UsedContext {
			b.WriteString("\n- ")
			b.WriteString(item.Description)
			if item.Price != nil {
				fmt.Fprintf(&b, " ($%.2f)", *item.Price)
			}
			if item.ImageURL != "" {
				b.WriteString(" ")
				b.WriteString(item.ImageURL)
			}
		}
	}
	return b.String()
}

func (s *Session) command(line string) (string, bool) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return "Bye!", true
	case "/reset":
		s.Reset()
		return Greeting, false
	case "/provider":
		if err := s.setProvider(arg); err != nil {
			return errorLine(err), false
		}
		return fmt.Sprintf("Using %s with %s", s.provider, s.model), false
	case "/model":
		if err := s.setModel(arg); err != nil {
			return errorLine(err), false
		}
		return fmt.Sprintf("Using %s with %s", s.provider, s.model), false
	case "/mode":
		if err := s.setMode(arg); err != nil {
			return errorLine(err), false
		}
		return "Mode: " + s.mode, false
	default:
		return helpText, false
	}
}

func (s *Session) setProvider(provider string) error {
	catalog, ok := llm.Catalog[provider]
	if !ok {
		return fmt.Errorf("%w %q, choose one of %s", ErrUnknownProvider, provider, strings.Join(llm.Providers(), ", "))
	}
	s.provider = provider
	s.model = catalog[0]
	return nil
}

func (s *Session) setModel(model string) error {
	for _, m := range llm.Catalog[s.provider] {
		if m == model {
			s.model = model
			return nil
		}
	}
	return fmt.Errorf("%w %q for %s, choose one of %s", ErrUnknownModel, model, s.provider, strings.Join(llm.Catalog[s.provider], ", "))
}

func (s *Session) setMode(mode string) error {
	switch mode {
	case "", ModeChat:
		s.mode = ModeChat
	case ModeRAG:
		s.mode = ModeRAG
	default:
		return fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}
	return nil
}

func errorLine(err error) string {
	return "Error: " + err.Error()
}
