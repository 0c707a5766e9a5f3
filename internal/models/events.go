package models

import "time"

// Event types
const (
	EventTypeReservationCommitted = "RESERVATION_COMMITTED"
	EventTypeReservationRejected  = "RESERVATION_REJECTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReservationCommittedEvent published when every line of a reservation was reserved
type ReservationCommittedEvent struct {
	BaseEvent
	ReservationID string         `json:"reservation_id"`
	Items         []ReservedItem `json:"items"`
}

// ReservationRejectedEvent published when a reservation was rolled back
type ReservationRejectedEvent struct {
	BaseEvent
	ReservationID string       `json:"reservation_id"`
	FailedItems   []FailedItem `json:"failed_items"`
}
