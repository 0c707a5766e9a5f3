package models

import "time"

// InventoryRow is a single row of warehouses.inventory
type InventoryRow struct {
	WarehouseID       string `db:"warehouse_id" json:"warehouse_id"`
	ProductID         string `db:"product_id" json:"product_id"`
	WarehouseName     string `db:"warehouse_name" json:"warehouse_name"`
	WarehouseLocation string `db:"warehouse_location" json:"warehouse_location"`
	TotalQuantity     int    `db:"total_quantity" json:"total_quantity"`
	ReservedQuantity  int    `db:"reserved_quantity" json:"reserved_quantity"`
	AvailableQuantity int    `db:"available_quantity" json:"available_quantity"`
}

// Warehouse identifies a warehouse that holds at least one inventory row
type Warehouse struct {
	WarehouseID       string `db:"warehouse_id" json:"warehouse_id"`
	WarehouseName     string `db:"warehouse_name" json:"warehouse_name"`
	WarehouseLocation string `db:"warehouse_location" json:"warehouse_location"`
}

// ItemRequest is one product line of an availability check
type ItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// ItemAvailability describes how one warehouse covers one requested item
type ItemAvailability struct {
	ProductID            string `json:"product_id"`
	Requested            int    `json:"requested"`
	Available            int    `json:"available"`
	CanFulfillCompletely bool   `json:"can_fulfill_completely"`
	CanFulfillPartially  bool   `json:"can_fulfill_partially"`
}

// WarehouseAvailability is the per-warehouse breakdown of an availability check
type WarehouseAvailability struct {
	WarehouseID       string             `json:"warehouse_id"`
	WarehouseName     string             `json:"warehouse_name"`
	WarehouseLocation string             `json:"warehouse_location"`
	Items             []ItemAvailability `json:"items"`
	CanFulfillAll     bool               `json:"can_fulfill_all"`
	HasPartial        bool               `json:"has_partial"`
}

// UnavailableItem is an item no combination of warehouses can cover
type UnavailableItem struct {
	ProductID                      string `json:"product_id"`
	Requested                      int    `json:"requested"`
	TotalAvailableAcrossWarehouses int    `json:"total_available_across_warehouses"`
	Shortage                       int    `json:"shortage"`
}

// AvailabilityResult is the answer to an availability check
type AvailabilityResult struct {
	CanFulfillCompletely         bool                    `json:"can_fulfill_completely"`
	WarehousesFullFulfillment    []Warehouse             `json:"warehouses_full_fulfillment"`
	WarehousesPartialFulfillment []Warehouse             `json:"warehouses_partial_fulfillment"`
	UnavailableItems             []UnavailableItem       `json:"unavailable_items"`
	Details                      []WarehouseAvailability `json:"details"`
}

// ReservationLine asks for a quantity of one product from one warehouse
type ReservationLine struct {
	WarehouseID string `json:"warehouse_id" binding:"required"`
	ProductID   string `json:"product_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
}

// ReservationRequest groups the lines that must be reserved together
type ReservationRequest struct {
	Reservations   []ReservationLine `json:"reservations" binding:"required,min=1,dive"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// ReservedItem is a line that was reserved
type ReservedItem struct {
	ProductID         string `json:"product_id"`
	Quantity          int    `json:"quantity"`
	WarehouseID       string `json:"warehouse_id"`
	WarehouseName     string `json:"warehouse_name"`
	WarehouseLocation string `json:"warehouse_location"`
}

// FailedItem is a line that could not be reserved
type FailedItem struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	Reason      string `json:"reason"`
}

// ReservationResult reports the outcome of a reservation transaction.
// Success is true only when every line was reserved and the transaction committed.
type ReservationResult struct {
	ReservationID string         `json:"reservation_id,omitempty"`
	Success       bool           `json:"success"`
	ReservedItems []ReservedItem `json:"reserved_items"`
	FailedItems   []FailedItem   `json:"failed_items"`
}

// Reservation failure reasons
const (
	FailureInsufficientStock = "insufficient_stock"
	FailureNotInWarehouse    = "not_in_warehouse"
)

// ReservationLogEntry is one audited line of a reservation event
type ReservationLogEntry struct {
	ID            int64     `db:"id" json:"id"`
	ReservationID string    `db:"reservation_id" json:"reservation_id"`
	EventType     string    `db:"event_type" json:"event_type"`
	WarehouseID   string    `db:"warehouse_id" json:"warehouse_id"`
	ProductID     string    `db:"product_id" json:"product_id"`
	Quantity      int       `db:"quantity" json:"quantity"`
	Reason        string    `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
