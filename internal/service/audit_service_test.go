package service

import (
	"context"
	"errors"
	"testing"

	"shopping-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditStore struct {
	seen    map[string]bool
	entries []models.ReservationLogEntry
	err     error
}

func (f *fakeAuditStore) RecordReservationEvent(ctx context.Context, eventID, eventType string, entries []models.ReservationLogEntry) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	f.entries = append(f.entries, entries...)
	return true, nil
}

func (f *fakeAuditStore) ListReservationLog(ctx context.Context, reservationID string) ([]models.ReservationLogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.ReservationLogEntry
	for _, entry := range f.entries {
		if entry.ReservationID == reservationID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func TestAuditCommittedEventOnce(t *testing.T) {
	store := &fakeAuditStore{seen: map[string]bool{}}
	svc := NewAuditService(store)

	event := &models.ReservationCommittedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeReservationCommitted},
		ReservationID: "res-1",
		Items: []models.ReservedItem{
			{ProductID: "P-1", Quantity: 2, WarehouseID: "WH-BER-001"},
			{ProductID: "P-2", Quantity: 1, WarehouseID: "WH-MUC-002"},
		},
	}

	require.NoError(t, svc.HandleReservationCommitted(context.Background(), event))
	require.NoError(t, svc.HandleReservationCommitted(context.Background(), event))

	require.Len(t, store.entries, 2)
	assert.Equal(t, models.ReservationLogEntry{
		ReservationID: "res-1",
		EventType:     models.EventTypeReservationCommitted,
		WarehouseID:   "WH-MUC-002",
		ProductID:     "P-2",
		Quantity:      1,
	}, store.entries[1])
}

func TestAuditRejectedEventKeepsReason(t *testing.T) {
	store := &fakeAuditStore{seen: map[string]bool{}}
	svc := NewAuditService(store)

	require.NoError(t, svc.HandleReservationRejected(context.Background(), &models.ReservationRejectedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-2"},
		ReservationID: "res-2",
		FailedItems: []models.FailedItem{{
			ProductID: "P-9", WarehouseID: "WH-AMS-003", Requested: 4, Reason: models.FailureNotInWarehouse,
		}},
	}))

	require.Len(t, store.entries, 1)
	assert.Equal(t, models.FailureNotInWarehouse, store.entries[0].Reason)
	assert.Equal(t, 4, store.entries[0].Quantity)
}

func TestAuditReturnsStoreError(t *testing.T) {
	svc := NewAuditService(&fakeAuditStore{err: errors.New("db down")})

	err := svc.HandleReservationRejected(context.Background(), &models.ReservationRejectedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-3"},
	})
	assert.Error(t, err)
}

func TestReservationLog(t *testing.T) {
	store := &fakeAuditStore{seen: map[string]bool{}}
	svc := NewAuditService(store)

	require.NoError(t, svc.HandleReservationCommitted(context.Background(), &models.ReservationCommittedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-4"},
		ReservationID: "res-4",
		Items:         []models.ReservedItem{{ProductID: "P-1", Quantity: 3, WarehouseID: "WH-BER-001"}},
	}))

	entries, err := svc.ReservationLog(context.Background(), "res-4")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Quantity)

	entries, err = svc.ReservationLog(context.Background(), "unknown")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	_, err = svc.ReservationLog(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingIdentifier)
}
