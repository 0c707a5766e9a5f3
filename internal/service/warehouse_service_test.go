package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shopping-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	berlin    = models.Warehouse{WarehouseID: "WH-BER-001", WarehouseName: "Berlin Central", WarehouseLocation: "Berlin, Germany"}
	munich    = models.Warehouse{WarehouseID: "WH-MUC-002", WarehouseName: "Munich South", WarehouseLocation: "Munich, Germany"}
	amsterdam = models.Warehouse{WarehouseID: "WH-AMS-003", WarehouseName: "Amsterdam Port", WarehouseLocation: "Amsterdam, Netherlands"}
)

type fakeInventory struct {
	warehouses []models.Warehouse
	rows       []models.InventoryRow
	reserveErr error
	result     *models.ReservationResult
	reserved   [][]models.ReservationLine
	released   []models.ReservedItem
}

func (f *fakeInventory) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	return f.warehouses, nil
}

func (f *fakeInventory) ListInventoryByProducts(ctx context.Context, productIDs []string) ([]models.InventoryRow, error) {
	wanted := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	var out []models.InventoryRow
	for _, row := range f.rows {
		if wanted[row.ProductID] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeInventory) ReserveItems(ctx context.Context, lines []models.ReservationLine) (*models.ReservationResult, error) {
	f.reserved = append(f.reserved, lines)
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	copied := *f.result
	return &copied, nil
}

func (f *fakeInventory) ReleaseItems(ctx context.Context, items []models.ReservedItem) error {
	f.released = append(f.released, items...)
	return nil
}

func (f *fakeInventory) GetInventoryRow(ctx context.Context, warehouseID, productID string) (*models.InventoryRow, error) {
	for _, row := range f.rows {
		if row.WarehouseID == warehouseID && row.ProductID == productID {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

type fakePublisher struct {
	committed []*models.ReservationCommittedEvent
	rejected  []*models.ReservationRejectedEvent
}

func (f *fakePublisher) PublishReservationCommitted(ctx context.Context, event *models.ReservationCommittedEvent) error {
	f.committed = append(f.committed, event)
	return nil
}

func (f *fakePublisher) PublishReservationRejected(ctx context.Context, event *models.ReservationRejectedEvent) error {
	f.rejected = append(f.rejected, event)
	return errors.New("broker unavailable")
}

type fakeIdempotency struct {
	mu      sync.Mutex
	results map[string]models.ReservationResult
	locks   map[string]bool
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{results: map[string]models.ReservationResult{}, locks: map[string]bool{}}
}

func (f *fakeIdempotency) GetIdempotentResult(ctx context.Context, key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.results[key]
	if ok {
		*(out.(*models.ReservationResult)) = res
	}
	return ok, nil
}

func (f *fakeIdempotency) SetIdempotentResult(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[key] = *(value.(*models.ReservationResult))
	return nil
}

func (f *fakeIdempotency) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[key] {
		return false, nil
	}
	f.locks[key] = true
	return true, nil
}

func (f *fakeIdempotency) ReleaseLock(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, key)
	return nil
}

func row(wh models.Warehouse, productID string, available int) models.InventoryRow {
	return models.InventoryRow{
		WarehouseID:       wh.WarehouseID,
		ProductID:         productID,
		WarehouseName:     wh.WarehouseName,
		WarehouseLocation: wh.WarehouseLocation,
		TotalQuantity:     available,
		AvailableQuantity: available,
	}
}

func TestCheckAvailabilityClassifiesWarehouses(t *testing.T) {
	inv := &fakeInventory{
		warehouses: []models.Warehouse{berlin, munich, amsterdam},
		rows: []models.InventoryRow{
			row(berlin, "P-1", 10),
			row(berlin, "P-2", 5),
			row(munich, "P-1", 3),
		},
	}
	svc := NewWarehouseService(inv, nil, nil, time.Hour)

	result, err := svc.CheckAvailability(context.Background(), []models.ItemRequest{
		{ProductID: "P-1", Quantity: 4},
		{ProductID: "P-2", Quantity: 5},
	})
	require.NoError(t, err)

	assert.True(t, result.CanFulfillCompletely)
	assert.Equal(t, []models.Warehouse{berlin}, result.WarehousesFullFulfillment)
	assert.Equal(t, []models.Warehouse{munich}, result.WarehousesPartialFulfillment)
	assert.Empty(t, result.UnavailableItems)

	require.Len(t, result.Details, 3)
	assert.True(t, result.Details[0].CanFulfillAll)
	assert.True(t, result.Details[1].HasPartial)
	assert.Equal(t, models.ItemAvailability{
		ProductID:           "P-1",
		Requested:           4,
		Available:           3,
		CanFulfillPartially: true,
	}, result.Details[1].Items[0])
	assert.False(t, result.Details[2].CanFulfillAll)
	assert.False(t, result.Details[2].HasPartial)
}

func TestCheckAvailabilityReportsShortageAcrossWarehouses(t *testing.T) {
	inv := &fakeInventory{
		warehouses: []models.Warehouse{berlin, munich},
		rows: []models.InventoryRow{
			row(berlin, "P-1", 2),
			row(munich, "P-1", 3),
		},
	}
	svc := NewWarehouseService(inv, nil, nil, time.Hour)

	result, err := svc.CheckAvailability(context.Background(), []models.ItemRequest{
		{ProductID: "P-1", Quantity: 10},
		{ProductID: "P-404", Quantity: 1},
	})
	require.NoError(t, err)

	assert.False(t, result.CanFulfillCompletely)
	assert.Empty(t, result.WarehousesFullFulfillment)
	assert.Len(t, result.WarehousesPartialFulfillment, 2)
	assert.Equal(t, []models.UnavailableItem{
		{ProductID: "P-1", Requested: 10, TotalAvailableAcrossWarehouses: 5, Shortage: 5},
		{ProductID: "P-404", Requested: 1, TotalAvailableAcrossWarehouses: 0, Shortage: 1},
	}, result.UnavailableItems)
}

func TestCheckAvailabilityNeedsCombinedStock(t *testing.T) {
	inv := &fakeInventory{
		warehouses: []models.Warehouse{berlin, munich},
		rows: []models.InventoryRow{
			row(berlin, "P-1", 6),
			row(munich, "P-1", 6),
		},
	}
	svc := NewWarehouseService(inv, nil, nil, time.Hour)

	result, err := svc.CheckAvailability(context.Background(), []models.ItemRequest{{ProductID: "P-1", Quantity: 10}})
	require.NoError(t, err)

	assert.False(t, result.CanFulfillCompletely)
	assert.Empty(t, result.UnavailableItems)
	assert.Len(t, result.WarehousesPartialFulfillment, 2)
}

func TestCheckAvailabilityValidation(t *testing.T) {
	svc := NewWarehouseService(&fakeInventory{}, nil, nil, time.Hour)
	ctx := context.Background()

	_, err := svc.CheckAvailability(ctx, nil)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = svc.CheckAvailability(ctx, []models.ItemRequest{{ProductID: "P-1", Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.True(t, IsValidationError(err))

	_, err = svc.CheckAvailability(ctx, []models.ItemRequest{{Quantity: 1}})
	assert.ErrorIs(t, err, ErrMissingIdentifier)
}

func TestReserveItemsPublishesCommittedEvent(t *testing.T) {
	inv := &fakeInventory{result: &models.ReservationResult{
		Success:       true,
		ReservedItems: []models.ReservedItem{{ProductID: "P-1", Quantity: 2, WarehouseID: berlin.WarehouseID}},
		FailedItems:   []models.FailedItem{},
	}}
	pub := &fakePublisher{}
	svc := NewWarehouseService(inv, pub, nil, time.Hour)

	result, err := svc.ReserveItems(context.Background(), &models.ReservationRequest{
		Reservations: []models.ReservationLine{{WarehouseID: berlin.WarehouseID, ProductID: "P-1", Quantity: 2}},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ReservationID)
	require.Len(t, pub.committed, 1)
	assert.Equal(t, result.ReservationID, pub.committed[0].ReservationID)
	assert.Equal(t, models.EventTypeReservationCommitted, pub.committed[0].EventType)
	assert.Empty(t, pub.rejected)
}

func TestReserveItemsRejectedStillReturnsResult(t *testing.T) {
	inv := &fakeInventory{result: &models.ReservationResult{
		ReservedItems: []models.ReservedItem{},
		FailedItems: []models.FailedItem{{
			ProductID: "P-1", WarehouseID: berlin.WarehouseID, Requested: 9, Available: 1,
			Reason: models.FailureInsufficientStock,
		}},
	}}
	pub := &fakePublisher{}
	svc := NewWarehouseService(inv, pub, nil, time.Hour)

	result, err := svc.ReserveItems(context.Background(), &models.ReservationRequest{
		Reservations: []models.ReservationLine{{WarehouseID: berlin.WarehouseID, ProductID: "P-1", Quantity: 9}},
	})
	require.NoError(t, err, "publish failures must not fail the reservation")

	assert.False(t, result.Success)
	require.Len(t, pub.rejected, 1)
	assert.Equal(t, result.FailedItems, pub.rejected[0].FailedItems)
}

func TestReserveItemsPropagatesStoreError(t *testing.T) {
	inv := &fakeInventory{reserveErr: errors.New("deadlock detected")}
	pub := &fakePublisher{}
	svc := NewWarehouseService(inv, pub, nil, time.Hour)

	result, err := svc.ReserveItems(context.Background(), &models.ReservationRequest{
		Reservations: []models.ReservationLine{{WarehouseID: berlin.WarehouseID, ProductID: "P-1", Quantity: 1}},
	})
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, pub.committed)
	assert.Empty(t, pub.rejected)
}

func TestReserveItemsValidation(t *testing.T) {
	inv := &fakeInventory{}
	svc := NewWarehouseService(inv, nil, nil, time.Hour)
	ctx := context.Background()

	_, err := svc.ReserveItems(ctx, &models.ReservationRequest{})
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = svc.ReserveItems(ctx, &models.ReservationRequest{
		Reservations: []models.ReservationLine{{WarehouseID: berlin.WarehouseID, ProductID: "P-1", Quantity: -3}},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.ReserveItems(ctx, &models.ReservationRequest{
		Reservations: []models.ReservationLine{{ProductID: "P-1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrMissingIdentifier)
	assert.Empty(t, inv.reserved)
}

func TestReserveItemsReplaysIdempotentResult(t *testing.T) {
	inv := &fakeInventory{result: &models.ReservationResult{
		Success:       true,
		ReservedItems: []models.ReservedItem{{ProductID: "P-1", Quantity: 1, WarehouseID: berlin.WarehouseID}},
		FailedItems:   []models.FailedItem{},
	}}
	idem := newFakeIdempotency()
	svc := NewWarehouseService(inv, nil, idem, time.Hour)
	req := &models.ReservationRequest{
		Reservations:   []models.ReservationLine{{WarehouseID: berlin.WarehouseID, ProductID: "P-1", Quantity: 1}},
		IdempotencyKey: "order-77",
	}

	first, err := svc.ReserveItems(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.ReserveItems(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ReservationID, second.ReservationID)
	assert.Len(t, inv.reserved, 1)
	assert.Empty(t, idem.locks)
}

func TestReserveItemsRefusesConcurrentDuplicate(t *testing.T) {
	idem := newFakeIdempotency()
	idem.locks[reservationKey("order-78")] = true
	inv := &fakeInventory{}
	svc := NewWarehouseService(inv, nil, idem, time.Hour)

	_, err := svc.ReserveItems(context.Background(), &models.ReservationRequest{
		Reservations:   []models.ReservationLine{{WarehouseID: berlin.WarehouseID, ProductID: "P-1", Quantity: 1}},
		IdempotencyKey: "order-78",
	})
	assert.ErrorIs(t, err, ErrReservationInProgress)
	assert.Empty(t, inv.reserved)
}

func TestReleaseItems(t *testing.T) {
	inv := &fakeInventory{}
	svc := NewWarehouseService(inv, nil, nil, time.Hour)

	items := []models.ReservedItem{{ProductID: "P-1", Quantity: 2, WarehouseID: berlin.WarehouseID}}
	require.NoError(t, svc.ReleaseItems(context.Background(), items))
	assert.Equal(t, items, inv.released)

	assert.ErrorIs(t, svc.ReleaseItems(context.Background(), nil), ErrNoItems)
}

func TestGetStock(t *testing.T) {
	inv := &fakeInventory{rows: []models.InventoryRow{
		{WarehouseID: "WH-BER-001", ProductID: "P-1", TotalQuantity: 10, ReservedQuantity: 4, AvailableQuantity: 6},
	}}
	svc := NewWarehouseService(inv, nil, nil, time.Hour)

	row, err := svc.GetStock(context.Background(), "WH-BER-001", "P-1")
	require.NoError(t, err)
	assert.Equal(t, 6, row.AvailableQuantity)

	_, err = svc.GetStock(context.Background(), "WH-BER-001", "P-2")
	assert.ErrorIs(t, err, ErrStockNotFound)

	_, err = svc.GetStock(context.Background(), "", "P-1")
	assert.ErrorIs(t, err, ErrMissingIdentifier)
}
