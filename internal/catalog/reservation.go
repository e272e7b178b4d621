package catalog

import (
	"context"
	"fmt"
	"log/slog"
)

// Line is one (product, quantity) pair of a reservation attempt.
type Line struct {
	ProductID string
	Quantity  int
}

// ReservationManager reserves stock for a whole order. Each per-product
// decrement is atomic, but the multi-item reservation is only compensatingly
// consistent: on the first failed line every previously reserved line is
// credited back before the failure is reported.
type ReservationManager struct {
	inventory Inventory
	logger    *slog.Logger
}

func NewReservationManager(inventory Inventory, logger *slog.Logger) *ReservationManager {
	return &ReservationManager{inventory: inventory, logger: logger}
}

// Reserve attempts to decrement stock for every line, in input order. On an
// insufficient line it rolls back the lines already taken in this attempt and
// returns an InsufficientStockError naming the offending product. Rollback
// runs synchronously within the same call, never deferred.
func (m *ReservationManager) Reserve(ctx context.Context, lines []Line) error {
	reserved := make([]Line, 0, len(lines))

	for _, line := range lines {
		ok, err := m.inventory.TryDecrement(ctx, line.ProductID, line.Quantity)
		if err != nil {
			m.rollback(ctx, reserved)
			return fmt.Errorf("decrement stock for %s: %w", line.ProductID, err)
		}
		if !ok {
			m.rollback(ctx, reserved)
			return &InsufficientStockError{ProductID: line.ProductID}
		}
		reserved = append(reserved, line)
	}

	return nil
}

// Release credits reserved quantities back, e.g. when an unpaid order is
// cancelled.
func (m *ReservationManager) Release(ctx context.Context, lines []Line) error {
	var firstErr error
	for _, line := range lines {
		if err := m.inventory.Credit(ctx, line.ProductID, line.Quantity); err != nil {
			m.logger.ErrorContext(ctx, "failed to release reserved stock",
				"product_id", line.ProductID,
				"quantity", line.Quantity,
				"error", err,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("credit stock for %s: %w", line.ProductID, err)
			}
		}
	}
	return firstErr
}

func (m *ReservationManager) rollback(ctx context.Context, reserved []Line) {
	for _, line := range reserved {
		if err := m.inventory.Credit(ctx, line.ProductID, line.Quantity); err != nil {
			// A failed compensation leaves stock under-counted; loud log so
			// ops can reconcile manually.
			m.logger.ErrorContext(ctx, "reservation rollback failed",
				"product_id", line.ProductID,
				"quantity", line.Quantity,
				"error", err,
			)
		}
	}
}
