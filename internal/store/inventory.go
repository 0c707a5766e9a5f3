package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopping-assistant/internal/models"

	"github.com/jmoiron/sqlx"
)

// ErrNothingReserved is returned when a release exceeds what is reserved for a row
var ErrNothingReserved = errors.New("nothing reserved to release")

const (
	listWarehousesQuery = `
		SELECT DISTINCT warehouse_id, warehouse_name, warehouse_location
		FROM warehouses.inventory
		ORDER BY warehouse_id`

	inventoryByProductsQuery = `
		SELECT warehouse_id, product_id, warehouse_name, warehouse_location,
		       total_quantity, reserved_quantity, available_quantity
		FROM warehouses.inventory
		WHERE product_id IN (?)`

	inventoryRowQuery = `
		SELECT warehouse_id, product_id, warehouse_name, warehouse_location,
		       total_quantity, reserved_quantity, available_quantity
		FROM warehouses.inventory
		WHERE warehouse_id = $1 AND product_id = $2`

	lockInventoryRowQuery = inventoryRowQuery + `
		FOR UPDATE`

	reserveQuantityQuery = `
		UPDATE warehouses.inventory
		SET reserved_quantity = reserved_quantity + $1
		WHERE warehouse_id = $2 AND product_id = $3`

	releaseQuantityQuery = `
		UPDATE warehouses.inventory
		SET reserved_quantity = reserved_quantity - $1
		WHERE warehouse_id = $2 AND product_id = $3 AND reserved_quantity >= $1`
)

// ListWarehouses returns every warehouse that holds at least one inventory row
func (s *Store) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var warehouses []models.Warehouse
	if err := s.db.SelectContext(ctx, &warehouses, listWarehousesQuery); err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	return warehouses, nil
}

// ListInventoryByProducts returns the inventory rows of the given products across all warehouses
func (s *Store) ListInventoryByProducts(ctx context.Context, productIDs []string) ([]models.InventoryRow, error) {
	if len(productIDs) == 0 {
		return []models.InventoryRow{}, nil
	}

	query, args, err := sqlx.In(inventoryByProductsQuery, productIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []models.InventoryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	return rows, nil
}

// GetInventoryRow retrieves one inventory row, returning nil when the product is not stocked there
func (s *Store) GetInventoryRow(ctx context.Context, warehouseID, productID string) (*models.InventoryRow, error) {
	var row models.InventoryRow
	err := s.db.GetContext(ctx, &row, inventoryRowQuery, warehouseID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ReserveItems reserves every line inside one transaction.
// Each matching row is locked with FOR UPDATE before it is checked. The transaction
// commits only when all lines were reserved; otherwise every change is rolled back
// and the result lists the lines that failed.
func (s *Store) ReserveItems(ctx context.Context, lines []models.ReservationLine) (*models.ReservationResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result := &models.ReservationResult{
		ReservedItems: []models.ReservedItem{},
		FailedItems:   []models.FailedItem{},
	}

	for _, line := range lines {
		var row models.InventoryRow
		err := tx.GetContext(ctx, &row, lockInventoryRowQuery, line.WarehouseID, line.ProductID)
		found := true
		if errors.Is(err, sql.ErrNoRows) {
			found = false
		} else if err != nil {
			return nil, fmt.Errorf("failed to lock inventory row %s/%s: %w", line.WarehouseID, line.ProductID, err)
		}

		if found && row.AvailableQuantity >= line.Quantity {
			if _, err := tx.ExecContext(ctx, reserveQuantityQuery, line.Quantity, line.WarehouseID, line.ProductID); err != nil {
				return nil, fmt.Errorf("failed to reserve %s/%s: %w", line.WarehouseID, line.ProductID, err)
			}

			result.ReservedItems = append(result.ReservedItems, models.ReservedItem{
				ProductID:         line.ProductID,
				Quantity:          line.Quantity,
				WarehouseID:       line.WarehouseID,
				WarehouseName:     row.WarehouseName,
				WarehouseLocation: row.WarehouseLocation,
			})
			continue
		}

		failed := models.FailedItem{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Requested:   line.Quantity,
			Reason:      models.FailureNotInWarehouse,
		}
		if found {
			failed.Available = row.AvailableQuantity
			failed.Reason = models.FailureInsufficientStock
		}
		result.FailedItems = append(result.FailedItems, failed)
	}

	if len(result.FailedItems) > 0 {
		if err := tx.Rollback(); err != nil {
			return nil, fmt.Errorf("failed to roll back reservation: %w", err)
		}
		return result, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	result.Success = true
	return result, nil
}

// ReleaseItems gives back previously reserved quantities in one transaction
func (s *Store) ReleaseItems(ctx context.Context, items []models.ReservedItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		res, err := tx.ExecContext(ctx, releaseQuantityQuery, item.Quantity, item.WarehouseID, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to release %s/%s: %w", item.WarehouseID, item.ProductID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w for %s/%s", ErrNothingReserved, item.WarehouseID, item.ProductID)
		}
	}

	return tx.Commit()
}
