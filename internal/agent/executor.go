package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/util"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"go.uber.org/zap"
)

// Skill names accepted in structured (data part) requests
const (
	SkillCheckAvailability = "check_availability"
	SkillReserveItems      = "reserve_items"
)

var (
	ErrNoMessage    = errors.New("message not provided")
	ErrEmptyMessage = errors.New("message has no text or data")
	ErrUnknownSkill = errors.New("unknown skill")
)

// HistoryStore keeps the conversation of an A2A context between requests
type HistoryStore interface {
	LoadHistory(ctx context.Context, sessionID string, out any) error
	AppendHistory(ctx context.Context, sessionID string, messages ...any) error
}

// Executor serves A2A requests. Text goes through the agent; data parts call the warehouse service directly.
type Executor struct {
	agent   *WarehouseAgent
	service WarehouseService
	history HistoryStore
	logger  *zap.Logger
}

func NewExecutor(agent *WarehouseAgent, service WarehouseService, history HistoryStore) *Executor {
	return &Executor{
		agent:   agent,
		service: service,
		history: history,
		logger:  util.GetLogger(),
	}
}

// Execute implements a2asrv.AgentExecutor
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	return e.execute(ctx, reqCtx, func(event a2a.Event) error {
		return queue.Write(ctx, event)
	})
}

// Cancel implements a2asrv.AgentExecutor
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	event.Final = true
	return queue.Write(ctx, event)
}

func (e *Executor) execute(ctx context.Context, reqCtx *a2asrv.RequestContext, emit func(a2a.Event) error) error {
	if reqCtx.Message == nil {
		return ErrNoMessage
	}

	if reqCtx.StoredTask == nil {
		if err := emit(a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}
	if err := emit(a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
		return err
	}

	parts, err := e.handle(ctx, reqCtx)
	if err != nil {
		e.logger.Error("Task failed",
			zap.String("task_id", string(reqCtx.TaskID)),
			zap.String("context_id", reqCtx.ContextID),
			zap.Error(err))
		msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: err.Error()})
		failed := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, msg)
		failed.Final = true
		return emit(failed)
	}

	if err := emit(a2a.NewArtifactEvent(reqCtx, parts...)); err != nil {
		return err
	}

	completed := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil)
	completed.Final = true
	return emit(completed)
}

func (e *Executor) handle(ctx context.Context, reqCtx *a2asrv.RequestContext) ([]a2a.Part, error) {
	text, data := splitParts(reqCtx.Message)
	if data != nil {
		result, err := e.runSkill(ctx, data)
		if err != nil {
			return nil, err
		}
		return []a2a.Part{a2a.DataPart{Data: result}}, nil
	}
	if text == "" {
		return nil, ErrEmptyMessage
	}

	reply, err := e.converse(ctx, reqCtx.ContextID, text)
	if err != nil {
		return nil, err
	}
	return []a2a.Part{a2a.TextPart{Text: reply}}, nil
}

// converse runs the agent on the stored history of the context plus the new user text
func (e *Executor) converse(ctx context.Context, contextID, text string) (string, error) {
	var history []llm.Message
	if e.history != nil && contextID != "" {
		if err := e.history.LoadHistory(ctx, contextID, &history); err != nil {
			e.logger.Warn("Failed to load conversation history", zap.String("context_id", contextID), zap.Error(err))
			history = nil
		}
	}

	userMsg := llm.Message{Role: llm.RoleUser, Content: text}
	turn, err := e.agent.Run(ctx, append(history, userMsg))
	if err != nil {
		return "", err
	}

	if e.history != nil && contextID != "" {
		toStore := make([]any, 0, len(turn.Messages)+1)
		toStore = append(toStore, userMsg)
		for _, m := range turn.Messages {
			toStore = append(toStore, m)
		}
		if err := e.history.AppendHistory(ctx, contextID, toStore...); err != nil {
			e.logger.Warn("Failed to store conversation history", zap.String("context_id", contextID), zap.Error(err))
		}
	}
	return turn.Reply, nil
}

type skillRequest struct {
	Skill          string                   `json:"skill"`
	Items          []models.ItemRequest     `json:"items"`
	Reservations   []models.ReservationLine `json:"reservations"`
	IdempotencyKey string                   `json:"idempotency_key"`
}

// runSkill serves a structured request such as {"skill": "reserve_items", "reservations": [...]}
func (e *Executor) runSkill(ctx context.Context, data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var req skillRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid skill request: %w", err)
	}

	var result any
	switch req.Skill {
	case SkillCheckAvailability:
		result, err = e.service.CheckAvailability(ctx, req.Items)
	case SkillReserveItems:
		result, err = e.service.ReserveItems(ctx, &models.ReservationRequest{
			Reservations:   req.Reservations,
			IdempotencyKey: req.IdempotencyKey,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSkill, req.Skill)
	}
	if err != nil {
		return nil, err
	}
	util.AgentToolCallsTotal.WithLabelValues(req.Skill, "success").Inc()

	return toMap(result)
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// splitParts joins the text parts of msg and returns the first data part that names a skill
func splitParts(msg *a2a.Message) (string, map[string]any) {
	var texts []string
	var data map[string]any
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			if strings.TrimSpace(p.Text) != "" {
				texts = append(texts, p.Text)
			}
		case *a2a.TextPart:
			if strings.TrimSpace(p.Text) != "" {
				texts = append(texts, p.Text)
			}
		case a2a.DataPart:
			if _, ok := p.Data["skill"]; ok && data == nil {
				data = p.Data
			}
		case *a2a.DataPart:
			if _, ok := p.Data["skill"]; ok && data == nil {
				data = p.Data
			}
		}
	}
	return strings.Join(texts, "\n"), data
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)
