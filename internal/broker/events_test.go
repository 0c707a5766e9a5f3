package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"shopping-assistant/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func encode(t *testing.T, event any) kafka.Message {
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestHandleMessageRoutesByEventType(t *testing.T) {
	handler := NewEventHandler(zap.NewNop())

	var committed *models.ReservationCommittedEvent
	var rejected *models.ReservationRejectedEvent
	handler.OnReservationCommitted(func(_ context.Context, e *models.ReservationCommittedEvent) error {
		committed = e
		return nil
	})
	handler.OnReservationRejected(func(_ context.Context, e *models.ReservationRejectedEvent) error {
		rejected = e
		return nil
	})

	err := handler.HandleMessage(context.Background(), encode(t, models.ReservationCommittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeReservationCommitted,
			Timestamp: time.Now(),
		},
		ReservationID: "r-1",
		Items:         []models.ReservedItem{{ProductID: "P-1", Quantity: 2, WarehouseID: "WH-BER-001"}},
	}))
	require.NoError(t, err)
	require.NotNil(t, committed)
	assert.Equal(t, "r-1", committed.ReservationID)
	assert.Len(t, committed.Items, 1)
	assert.Nil(t, rejected)

	err = handler.HandleMessage(context.Background(), encode(t, models.ReservationRejectedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeReservationRejected},
		ReservationID: "r-2",
		FailedItems:   []models.FailedItem{{ProductID: "P-1", Reason: models.FailureNotInWarehouse}},
	}))
	require.NoError(t, err)
	require.NotNil(t, rejected)
	assert.Equal(t, models.FailureNotInWarehouse, rejected.FailedItems[0].Reason)
}

func TestHandleMessageIgnoresUnknownEvents(t *testing.T) {
	handler := NewEventHandler(zap.NewNop())

	err := handler.HandleMessage(context.Background(), encode(t, models.BaseEvent{EventID: "evt-3", EventType: "SOMETHING_ELSE"}))
	assert.NoError(t, err)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	handler := NewEventHandler(zap.NewNop())

	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
