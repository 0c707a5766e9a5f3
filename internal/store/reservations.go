package store

import (
	"context"
	"fmt"

	"shopping-assistant/internal/models"
)

// RecordReservationEvent stores the audit entries of an event exactly once.
// It returns false without writing anything when the event was already recorded.
func (s *Store) RecordReservationEvent(ctx context.Context, eventID, eventType string, entries []models.ReservationLogEntry) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO warehouses.processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		return false, nil
	}

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO warehouses.reservation_log
				(reservation_id, event_type, warehouse_id, product_id, quantity, reason)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			entry.ReservationID, entry.EventType, entry.WarehouseID, entry.ProductID, entry.Quantity, entry.Reason)
		if err != nil {
			return false, fmt.Errorf("failed to insert reservation log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit reservation log: %w", err)
	}
	return true, nil
}

// ListReservationLog retrieves the audit entries of a reservation
func (s *Store) ListReservationLog(ctx context.Context, reservationID string) ([]models.ReservationLogEntry, error) {
	var entries []models.ReservationLogEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, reservation_id, event_type, warehouse_id, product_id, quantity, reason, created_at
		FROM warehouses.reservation_log
		WHERE reservation_id = $1
		ORDER BY id`, reservationID)
	return entries, err
}
