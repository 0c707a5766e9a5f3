package service

import (
	"context"
	"fmt"

	"shopping-assistant/internal/models"
	"shopping-assistant/internal/util"

	"go.uber.org/zap"
)

// AuditStore persists reservation events exactly once
type AuditStore interface {
	RecordReservationEvent(ctx context.Context, eventID, eventType string, entries []models.ReservationLogEntry) (bool, error)
	ListReservationLog(ctx context.Context, reservationID string) ([]models.ReservationLogEntry, error)
}

// AuditService writes reservation events into the reservation log
type AuditService struct {
	store  AuditStore
	logger *zap.Logger
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// HandleReservationCommitted records one log entry per reserved line
func (s *AuditService) HandleReservationCommitted(ctx context.Context, event *models.ReservationCommittedEvent) error {
	entries := make([]models.ReservationLogEntry, 0, len(event.Items))
	for _, item := range event.Items {
		entries = append(entries, models.ReservationLogEntry{
			ReservationID: event.ReservationID,
			EventType:     models.EventTypeReservationCommitted,
			WarehouseID:   item.WarehouseID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
		})
	}
	return s.record(ctx, event.EventID, models.EventTypeReservationCommitted, event.ReservationID, entries)
}

// HandleReservationRejected records one log entry per failed line
func (s *AuditService) HandleReservationRejected(ctx context.Context, event *models.ReservationRejectedEvent) error {
	entries := make([]models.ReservationLogEntry, 0, len(event.FailedItems))
	for _, item := range event.FailedItems {
		entries = append(entries, models.ReservationLogEntry{
			ReservationID: event.ReservationID,
			EventType:     models.EventTypeReservationRejected,
			WarehouseID:   item.WarehouseID,
			ProductID:     item.ProductID,
			Quantity:      item.Requested,
			Reason:        item.Reason,
		})
	}
	return s.record(ctx, event.EventID, models.EventTypeReservationRejected, event.ReservationID, entries)
}

func (s *AuditService) record(ctx context.Context, eventID, eventType, reservationID string, entries []models.ReservationLogEntry) error {
	recorded, err := s.store.RecordReservationEvent(ctx, eventID, eventType, entries)
	if err != nil {
		s.logger.Error("Failed to audit reservation event",
			zap.String("event_id", eventID),
			zap.String("reservation_id", reservationID),
			zap.Error(err))
		return err
	}

	if !recorded {
		s.logger.Info("Event already processed, skipping", zap.String("event_id", eventID))
		return nil
	}

	util.ReservationEventsAudited.WithLabelValues(eventType).Inc()
	s.logger.Info("Reservation event audited",
		zap.String("event_id", eventID),
		zap.String("event_type", eventType),
		zap.String("reservation_id", reservationID),
		zap.Int("entries", len(entries)))
	return nil
}

// ReservationLog returns the audited lines of a reservation, oldest first
func (s *AuditService) ReservationLog(ctx context.Context, reservationID string) ([]models.ReservationLogEntry, error) {
	if reservationID == "" {
		return nil, ErrMissingIdentifier
	}
	entries, err := s.store.ListReservationLog(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation log: %w", err)
	}
	if entries == nil {
		entries = []models.ReservationLogEntry{}
	}
	return entries, nil
}
