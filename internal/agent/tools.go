package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/util"

	"go.uber.org/zap"
)

const (
	ToolCheckAvailability = "check_warehouse_availability"
	ToolReserveItems      = "reserve_warehouse_items"
)

// WarehouseService is the inventory backend the agent's tools call
type WarehouseService interface {
	CheckAvailability(ctx context.Context, items []models.ItemRequest) (*models.AvailabilityResult, error)
	ReserveItems(ctx context.Context, req *models.ReservationRequest) (*models.ReservationResult, error)
}

var toolDefinitions = []llm.Tool{
	{
		Name: ToolCheckAvailability,
		Description: "Check availability of items across warehouses, including partial fulfillment options. " +
			"Returns can_fulfill_completely, warehouses_full_fulfillment, warehouses_partial_fulfillment, " +
			"unavailable_items and a per-warehouse breakdown in details.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"items": map[string]any{
					"type":        "array",
					"description": "Items to check.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"product_id": map[string]any{"type": "string"},
							"quantity":   map[string]any{"type": "integer"},
						},
						"required": []string{"product_id", "quantity"},
					},
				},
			},
			"required": []string{"items"},
		},
	},
	{
		Name: ToolReserveItems,
		Description: "Reserve items in specific warehouses. All reservations succeed or none are made. " +
			"Returns success, reserved_items and failed_items.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reservations": map[string]any{
					"type":        "array",
					"description": "Reservation lines.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"warehouse_id": map[string]any{"type": "string"},
							"product_id":   map[string]any{"type": "string"},
							"quantity":     map[string]any{"type": "integer"},
						},
						"required": []string{"warehouse_id", "product_id", "quantity"},
					},
				},
			},
			"required": []string{"reservations"},
		},
	},
}

// Toolbox executes the tool calls requested by the model
type Toolbox struct {
	service WarehouseService
	logger  *zap.Logger
}

func NewToolbox(service WarehouseService) *Toolbox {
	return &Toolbox{service: service, logger: util.GetLogger()}
}

// Definitions lists the tools offered to the model
func (t *Toolbox) Definitions() []llm.Tool {
	return toolDefinitions
}

// Execute runs one tool call and returns its JSON result.
// Failures are reported to the model as {"error": ...} instead of aborting the conversation.
func (t *Toolbox) Execute(ctx context.Context, call llm.ToolCall) string {
	result, err := t.execute(ctx, call)
	if err != nil {
		util.AgentToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
		t.logger.Warn("Tool call failed", zap.String("tool", call.Name), zap.Error(err))
		return errorJSON(err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		util.AgentToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
		return errorJSON(err)
	}
	util.AgentToolCallsTotal.WithLabelValues(call.Name, "success").Inc()
	return string(out)
}

func (t *Toolbox) execute(ctx context.Context, call llm.ToolCall) (any, error) {
	switch call.Name {
	case ToolCheckAvailability:
		var args struct {
			Items []models.ItemRequest `json:"items"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return t.service.CheckAvailability(ctx, args.Items)

	case ToolReserveItems:
		var args models.ReservationRequest
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return t.service.ReserveItems(ctx, &args)

	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func errorJSON(err error) string {
	out, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(out)
}
