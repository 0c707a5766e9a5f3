package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shopping-assistant/internal/broker"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/service"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (s *sliceSource) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, msg := range s.messages {
		s.errs = append(s.errs, handler(ctx, msg))
	}
	return nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type recordingStore struct {
	events   map[string][]models.ReservationLogEntry
	failures int
	attempts int
}

func (r *recordingStore) RecordReservationEvent(ctx context.Context, eventID, eventType string, entries []models.ReservationLogEntry) (bool, error) {
	r.attempts++
	if r.failures > 0 {
		r.failures--
		return false, errors.New("connection reset by peer")
	}
	if _, ok := r.events[eventID]; ok {
		return false, nil
	}
	r.events[eventID] = entries
	return true, nil
}

func (r *recordingStore) ListReservationLog(ctx context.Context, reservationID string) ([]models.ReservationLogEntry, error) {
	return nil, nil
}

func message(t *testing.T, event any) kafka.Message {
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestWorkerAuditsReservationEvents(t *testing.T) {
	committed := &models.ReservationCommittedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeReservationCommitted},
		ReservationID: "res-1",
		Items:         []models.ReservedItem{{ProductID: "P-1", Quantity: 3, WarehouseID: "WH-BER-001"}},
	}
	rejected := &models.ReservationRejectedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeReservationRejected},
		ReservationID: "res-2",
		FailedItems:   []models.FailedItem{{ProductID: "P-2", WarehouseID: "WH-MUC-002", Requested: 5, Reason: models.FailureInsufficientStock}},
	}

	source := &sliceSource{messages: []kafka.Message{
		message(t, committed),
		message(t, rejected),
		message(t, committed),
	}}
	store := &recordingStore{events: map[string][]models.ReservationLogEntry{}}
	w := NewReservationAuditWorker(source, service.NewAuditService(store))

	require.NoError(t, w.Start(context.Background()))
	for _, err := range source.errs {
		assert.NoError(t, err)
	}

	require.Len(t, store.events, 2)
	assert.Equal(t, "res-1", store.events["evt-1"][0].ReservationID)
	assert.Equal(t, models.FailureInsufficientStock, store.events["evt-2"][0].Reason)

	require.NoError(t, w.Stop())
	assert.True(t, source.closed)
}

func fastRetries(w *ReservationAuditWorker) {
	w.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
}

func TestWorkerRetriesUntilEventIsAudited(t *testing.T) {
	committed := &models.ReservationCommittedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeReservationCommitted},
		ReservationID: "res-1",
		Items:         []models.ReservedItem{{ProductID: "P-1", Quantity: 3, WarehouseID: "WH-BER-001"}},
	}
	source := &sliceSource{messages: []kafka.Message{message(t, committed)}}
	store := &recordingStore{events: map[string][]models.ReservationLogEntry{}, failures: 2}
	w := NewReservationAuditWorker(source, service.NewAuditService(store))
	fastRetries(w)

	require.NoError(t, w.Start(context.Background()))
	require.Len(t, source.errs, 1)
	assert.NoError(t, source.errs[0])
	assert.Equal(t, 3, store.attempts)
	assert.Contains(t, store.events, "evt-1")
}

func TestWorkerGivesUpWhenContextEnds(t *testing.T) {
	committed := &models.ReservationCommittedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeReservationCommitted},
		ReservationID: "res-1",
	}
	source := &sliceSource{messages: []kafka.Message{message(t, committed)}}
	store := &recordingStore{events: map[string][]models.ReservationLogEntry{}, failures: 1 << 30}
	w := NewReservationAuditWorker(source, service.NewAuditService(store))
	fastRetries(w)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Start(ctx))
	require.Len(t, source.errs, 1)
	assert.Error(t, source.errs[0])
	assert.Empty(t, store.events)
}

func TestWorkerSkipsMalformedEvents(t *testing.T) {
	source := &sliceSource{messages: []kafka.Message{{Value: []byte("not json")}}}
	store := &recordingStore{events: map[string][]models.ReservationLogEntry{}}
	w := NewReservationAuditWorker(source, service.NewAuditService(store))
	fastRetries(w)

	require.NoError(t, w.Start(context.Background()))
	require.Len(t, source.errs, 1)
	assert.NoError(t, source.errs[0])
	assert.Zero(t, store.attempts)
}
