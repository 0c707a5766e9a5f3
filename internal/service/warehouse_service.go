package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopping-assistant/internal/models"
	"shopping-assistant/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrNoItems               = errors.New("at least one item is required")
	ErrInvalidQuantity       = errors.New("quantity must be greater than zero")
	ErrMissingIdentifier     = errors.New("product_id and warehouse_id must not be empty")
	ErrReservationInProgress = errors.New("a reservation with this idempotency key is in progress")
	ErrStockNotFound         = errors.New("product is not stocked in this warehouse")
)

// InventoryStore is the persistence the warehouse service needs
type InventoryStore interface {
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
	ListInventoryByProducts(ctx context.Context, productIDs []string) ([]models.InventoryRow, error)
	ReserveItems(ctx context.Context, lines []models.ReservationLine) (*models.ReservationResult, error)
	ReleaseItems(ctx context.Context, items []models.ReservedItem) error
	GetInventoryRow(ctx context.Context, warehouseID, productID string) (*models.InventoryRow, error)
}

// ReservationEventPublisher announces reservation outcomes
type ReservationEventPublisher interface {
	PublishReservationCommitted(ctx context.Context, event *models.ReservationCommittedEvent) error
	PublishReservationRejected(ctx context.Context, event *models.ReservationRejectedEvent) error
}

// IdempotencyStore remembers results of requests that carry an idempotency key
type IdempotencyStore interface {
	GetIdempotentResult(ctx context.Context, key string, out any) (bool, error)
	SetIdempotentResult(ctx context.Context, key string, value any, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// WarehouseService checks and reserves warehouse inventory
type WarehouseService struct {
	store          InventoryStore
	publisher      ReservationEventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewWarehouseService creates a new warehouse service. publisher and idempotency may be nil.
func NewWarehouseService(
	store InventoryStore,
	publisher ReservationEventPublisher,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
) *WarehouseService {
	return &WarehouseService{
		store:          store,
		publisher:      publisher,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// CheckAvailability reports, for every warehouse, how far it can cover the requested items,
// and which items cannot be covered even by combining all warehouses.
func (s *WarehouseService) CheckAvailability(ctx context.Context, items []models.ItemRequest) (*models.AvailabilityResult, error) {
	ctx, span := util.StartSpan(ctx, "WarehouseService.CheckAvailability",
		attribute.Int("items", len(items)))
	defer span.End()

	if err := validateItems(items); err != nil {
		return nil, err
	}

	warehouses, err := s.store.ListWarehouses(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	rows, err := s.store.ListInventoryByProducts(ctx, uniqueProductIDs(items))
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	available := make(map[string]map[string]int, len(warehouses))
	totals := make(map[string]int, len(items))
	for _, row := range rows {
		if available[row.WarehouseID] == nil {
			available[row.WarehouseID] = make(map[string]int)
		}
		available[row.WarehouseID][row.ProductID] = row.AvailableQuantity
		totals[row.ProductID] += row.AvailableQuantity
	}

	result := &models.AvailabilityResult{
		WarehousesFullFulfillment:    []models.Warehouse{},
		WarehousesPartialFulfillment: []models.Warehouse{},
		UnavailableItems:             []models.UnavailableItem{},
		Details:                      make([]models.WarehouseAvailability, 0, len(warehouses)),
	}

	for _, wh := range warehouses {
		canFulfillAll := true
		hasAny := false
		detail := models.WarehouseAvailability{
			WarehouseID:       wh.WarehouseID,
			WarehouseName:     wh.WarehouseName,
			WarehouseLocation: wh.WarehouseLocation,
			Items:             make([]models.ItemAvailability, 0, len(items)),
		}

		for _, item := range items {
			qty := available[wh.WarehouseID][item.ProductID]
			detail.Items = append(detail.Items, models.ItemAvailability{
				ProductID:            item.ProductID,
				Requested:            item.Quantity,
				Available:            qty,
				CanFulfillCompletely: qty >= item.Quantity,
				CanFulfillPartially:  qty > 0 && qty < item.Quantity,
			})
			if qty < item.Quantity {
				canFulfillAll = false
			}
			if qty > 0 {
				hasAny = true
			}
		}

		switch {
		case canFulfillAll:
			detail.CanFulfillAll = true
			result.WarehousesFullFulfillment = append(result.WarehousesFullFulfillment, wh)
		case hasAny:
			detail.HasPartial = true
			result.WarehousesPartialFulfillment = append(result.WarehousesPartialFulfillment, wh)
		}
		result.Details = append(result.Details, detail)
	}

	for _, item := range items {
		total := totals[item.ProductID]
		if total < item.Quantity {
			result.UnavailableItems = append(result.UnavailableItems, models.UnavailableItem{
				ProductID:                      item.ProductID,
				Requested:                      item.Quantity,
				TotalAvailableAcrossWarehouses: total,
				Shortage:                       item.Quantity - total,
			})
		}
	}

	result.CanFulfillCompletely = len(result.WarehousesFullFulfillment) > 0 && len(result.UnavailableItems) == 0

	switch {
	case result.CanFulfillCompletely:
		util.AvailabilityChecksTotal.WithLabelValues("complete").Inc()
	case len(result.WarehousesFullFulfillment) > 0 || len(result.WarehousesPartialFulfillment) > 0:
		util.AvailabilityChecksTotal.WithLabelValues("partial").Inc()
	default:
		util.AvailabilityChecksTotal.WithLabelValues("unavailable").Inc()
	}

	s.logger.Info("Availability checked",
		zap.Int("items", len(items)),
		zap.Int("warehouses", len(warehouses)),
		zap.Bool("can_fulfill_completely", result.CanFulfillCompletely))

	return result, nil
}

// ReserveItems reserves every line of the request or nothing at all.
// A request carrying an idempotency key returns the stored result when it is repeated.
func (s *WarehouseService) ReserveItems(ctx context.Context, req *models.ReservationRequest) (*models.ReservationResult, error) {
	ctx, span := util.StartSpan(ctx, "WarehouseService.ReserveItems",
		attribute.Int("lines", len(req.Reservations)))
	defer span.End()

	if err := validateLines(req.Reservations); err != nil {
		return nil, err
	}

	useIdempotency := req.IdempotencyKey != "" && s.idempotency != nil
	if useIdempotency {
		var previous models.ReservationResult
		found, err := s.idempotency.GetIdempotentResult(ctx, reservationKey(req.IdempotencyKey), &previous)
		if err != nil {
			s.logger.Warn("Idempotency lookup failed", zap.Error(err))
		} else if found {
			s.logger.Info("Duplicate reservation request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("reservation_id", previous.ReservationID))
			return &previous, nil
		}

		locked, err := s.idempotency.AcquireLock(ctx, reservationKey(req.IdempotencyKey), 30*time.Second)
		if err != nil {
			s.logger.Warn("Idempotency lock failed", zap.Error(err))
		} else if !locked {
			return nil, ErrReservationInProgress
		} else {
			defer func() {
				if err := s.idempotency.ReleaseLock(context.WithoutCancel(ctx), reservationKey(req.IdempotencyKey)); err != nil {
					s.logger.Warn("Failed to release idempotency lock", zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	result, err := s.store.ReserveItems(ctx, req.Reservations)
	util.ReservationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.ReservationsTotal.WithLabelValues("error").Inc()
		util.RecordError(span, err)
		s.logger.Error("Reservation transaction failed", zap.Error(err))
		return nil, fmt.Errorf("reservation failed: %w", err)
	}

	result.ReservationID = uuid.New().String()
	span.SetAttributes(attribute.String("reservation_id", result.ReservationID), attribute.Bool("success", result.Success))

	if result.Success {
		util.ReservationsTotal.WithLabelValues("committed").Inc()
		s.logger.Info("Reservation committed",
			zap.String("reservation_id", result.ReservationID),
			zap.Int("lines", len(result.ReservedItems)))
	} else {
		util.ReservationsTotal.WithLabelValues("rejected").Inc()
		for _, failed := range result.FailedItems {
			util.ReservationLinesFailed.WithLabelValues(failed.Reason).Inc()
		}
		s.logger.Info("Reservation rolled back",
			zap.String("reservation_id", result.ReservationID),
			zap.Int("failed_lines", len(result.FailedItems)))
	}

	s.publishOutcome(ctx, result)

	if useIdempotency {
		if err := s.idempotency.SetIdempotentResult(ctx, reservationKey(req.IdempotencyKey), result, s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotent result", zap.Error(err))
		}
	}

	return result, nil
}

// ReleaseItems returns reserved quantities to stock
func (s *WarehouseService) ReleaseItems(ctx context.Context, items []models.ReservedItem) error {
	ctx, span := util.StartSpan(ctx, "WarehouseService.ReleaseItems")
	defer span.End()

	if len(items) == 0 {
		return ErrNoItems
	}
	for _, item := range items {
		if item.ProductID == "" || item.WarehouseID == "" {
			return ErrMissingIdentifier
		}
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}

	if err := s.store.ReleaseItems(ctx, items); err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("release failed: %w", err)
	}

	s.logger.Info("Reserved items released", zap.Int("lines", len(items)))
	return nil
}

// GetStock returns the inventory row of a product in one warehouse
func (s *WarehouseService) GetStock(ctx context.Context, warehouseID, productID string) (*models.InventoryRow, error) {
	if warehouseID == "" || productID == "" {
		return nil, ErrMissingIdentifier
	}

	row, err := s.store.GetInventoryRow(ctx, warehouseID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrStockNotFound, warehouseID, productID)
	}
	return row, nil
}

func (s *WarehouseService) publishOutcome(ctx context.Context, result *models.ReservationResult) {
	if s.publisher == nil {
		return
	}

	base := models.BaseEvent{EventID: uuid.New().String(), Timestamp: time.Now()}
	var err error
	if result.Success {
		base.EventType = models.EventTypeReservationCommitted
		err = s.publisher.PublishReservationCommitted(ctx, &models.ReservationCommittedEvent{
			BaseEvent:     base,
			ReservationID: result.ReservationID,
			Items:         result.ReservedItems,
		})
	} else {
		base.EventType = models.EventTypeReservationRejected
		err = s.publisher.PublishReservationRejected(ctx, &models.ReservationRejectedEvent{
			BaseEvent:     base,
			ReservationID: result.ReservationID,
			FailedItems:   result.FailedItems,
		})
	}
	if err != nil {
		s.logger.Error("Failed to publish reservation event",
			zap.String("event_type", base.EventType),
			zap.Error(err))
	}
}

func reservationKey(idempotencyKey string) string {
	return "reservation:" + idempotencyKey
}

func validateItems(items []models.ItemRequest) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	for _, item := range items {
		if item.ProductID == "" {
			return ErrMissingIdentifier
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
	}
	return nil
}

func validateLines(lines []models.ReservationLine) error {
	if len(lines) == 0 {
		return ErrNoItems
	}
	for _, line := range lines {
		if line.ProductID == "" || line.WarehouseID == "" {
			return ErrMissingIdentifier
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: product %s in %s", ErrInvalidQuantity, line.ProductID, line.WarehouseID)
		}
	}
	return nil
}

func uniqueProductIDs(items []models.ItemRequest) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// IsValidationError reports whether err was caused by a malformed request
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoItems) || errors.Is(err, ErrInvalidQuantity) || errors.Is(err, ErrMissingIdentifier)
}
