package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shopping-assistant/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrMalformedEvent marks messages that can never be decoded, however often they are retried
var ErrMalformedEvent = errors.New("malformed event")

// EventPublisher handles publishing reservation events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func reservationKey(reservationID string) string {
	return fmt.Sprintf("reservation-%s", reservationID)
}

// PublishReservationCommitted publishes ReservationCommitted event
func (ep *EventPublisher) PublishReservationCommitted(ctx context.Context, event *models.ReservationCommittedEvent) error {
	return ep.producer.PublishEvent(ctx, reservationKey(event.ReservationID), event.EventType, event)
}

// PublishReservationRejected publishes ReservationRejected event
func (ep *EventPublisher) PublishReservationRejected(ctx context.Context, event *models.ReservationRejectedEvent) error {
	return ep.producer.PublishEvent(ctx, reservationKey(event.ReservationID), event.EventType, event)
}

// EventHandler routes incoming reservation events
type EventHandler struct {
	onCommitted func(context.Context, *models.ReservationCommittedEvent) error
	onRejected  func(context.Context, *models.ReservationRejectedEvent) error
	logger      *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(logger *zap.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

// OnReservationCommitted registers a handler for ReservationCommitted events
func (eh *EventHandler) OnReservationCommitted(handler func(context.Context, *models.ReservationCommittedEvent) error) {
	eh.onCommitted = handler
}

// OnReservationRejected registers a handler for ReservationRejected events
func (eh *EventHandler) OnReservationRejected(handler func(context.Context, *models.ReservationRejectedEvent) error) {
	eh.onRejected = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: base event: %v", ErrMalformedEvent, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeReservationCommitted:
		if eh.onCommitted != nil {
			var event models.ReservationCommittedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: ReservationCommitted: %v", ErrMalformedEvent, err)
			}
			return eh.onCommitted(ctx, &event)
		}

	case models.EventTypeReservationRejected:
		if eh.onRejected != nil {
			var event models.ReservationRejectedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: ReservationRejected: %v", ErrMalformedEvent, err)
			}
			return eh.onRejected(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
