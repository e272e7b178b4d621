package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Product is a catalog entry as seen by the order flow: identity, a resolved
// unit price, and the current stock count. The order core never mutates
// products except through the Inventory reservation operations.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	Stock      int
}

// PriceVariant is one size/amount entry of a size-priced product.
type PriceVariant struct {
	Size        string
	AmountCents int64
}

// Price is the tagged price shape a product carries at the storage boundary:
// either a fixed amount or a list of sized variants. It is resolved to a
// single numeric amount exactly once, when products are loaded, so downstream
// code never sees the variant list.
type Price struct {
	FixedCents int64
	Variants   []PriceVariant
}

// Resolve returns the effective unit price. Sized products price at their
// first variant.
func (p Price) Resolve() int64 {
	if len(p.Variants) > 0 {
		return p.Variants[0].AmountCents
	}
	return p.FixedCents
}

// Catalog is the read-only product lookup consumed by the order flow.
// Implementations must return ErrProductNotFound (wrapped) when any of the
// requested ids is unknown.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Inventory provides per-product atomic stock operations. TryDecrement is a
// single indivisible check-and-decrement: it succeeds only when the remaining
// stock covers the requested quantity, and stock never goes negative.
type Inventory interface {
	TryDecrement(ctx context.Context, productID string, quantity int) (bool, error)
	Credit(ctx context.Context, productID string, quantity int) error
}

var (
	// ErrProductNotFound is returned when a requested product id is unknown.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is the sentinel matched by errors.Is for
	// InsufficientStockError values.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError reports which product a reservation failed on.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
