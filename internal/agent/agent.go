package agent

import (
	"context"
	"errors"
	"fmt"

	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const instruction = `
You are a part of the shopping assistant that can manage available inventory in the warehouses.

You will be given a conversation history and a list of tools, your task is to perform actions requested by the latest user query. Answer part of the query that you can answer with the available tools.

Instructions:
- You must always check the availability of the items in the warehouses before reserving them.
- Only reserve items in warehouses if entire order can be reserved or the user has confirmed that they want a partial reservation.
- If you cannot reserve any items, return an answer that the order cannot be reserved.
- If you can reserve some items, return an answer that the order can be partially reserved and include the details.
- If only partial quantity can be reserved in some warehouses, try to combine the required quantity from different warehouses.
- Try to reserve items from the closest warehouse to the user first if users location is provided.
`

var ErrTooManyToolRounds = errors.New("agent exceeded the maximum number of tool rounds")

// ChatModel sends a chat request to a provider
type ChatModel interface {
	Chat(ctx context.Context, provider string, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

// Config selects the model behind the agent
type Config struct {
	Provider      string
	Model         string
	Temperature   float64
	MaxToolRounds int
}

// WarehouseAgent answers warehouse questions by letting the model call inventory tools
type WarehouseAgent struct {
	model  ChatModel
	tools  *Toolbox
	cfg    Config
	logger *zap.Logger
}

func NewWarehouseAgent(model ChatModel, tools *Toolbox, cfg Config) *WarehouseAgent {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 8
	}
	return &WarehouseAgent{
		model:  model,
		tools:  tools,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// Turn is the outcome of one agent run
type Turn struct {
	Reply string
	// Messages holds every message produced during the run, tool traffic included.
	Messages []llm.Message
}

// Run continues the conversation in history until the model answers without calling a tool
func (a *WarehouseAgent) Run(ctx context.Context, history []llm.Message) (*Turn, error) {
	ctx, span := util.StartSpan(ctx, "WarehouseAgent.Run",
		attribute.String("provider", a.cfg.Provider),
		attribute.String("model", a.cfg.Model))
	defer span.End()

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: instruction})
	messages = append(messages, history...)
	produced := len(messages)

	temperature := a.cfg.Temperature
	for round := 0; round < a.cfg.MaxToolRounds; round++ {
		resp, err := a.model.Chat(ctx, a.cfg.Provider, &llm.ChatRequest{
			Model:       a.cfg.Model,
			Messages:    messages,
			Tools:       a.tools.Definitions(),
			Temperature: &temperature,
		})
		if err != nil {
			util.RecordError(span, err)
			return nil, fmt.Errorf("model call failed: %w", err)
		}

		messages = append(messages, resp.Message)
		if len(resp.Message.ToolCalls) == 0 {
			span.SetAttributes(attribute.Int("rounds", round+1))
			return &Turn{Reply: resp.Message.Content, Messages: messages[produced:]}, nil
		}

		for _, call := range resp.Message.ToolCalls {
			a.logger.Info("Executing tool", zap.String("tool", call.Name), zap.String("call_id", call.ID))
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    a.tools.Execute(ctx, call),
			})
		}
	}

	util.RecordError(span, ErrTooManyToolRounds)
	return nil, ErrTooManyToolRounds
}
