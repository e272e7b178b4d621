package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
)

// Repository provides an in-memory store useful for local development and tests.
type Repository struct {
	mu      sync.RWMutex
	orders  map[string]domain.Order
	byTxnID map[string]string
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		orders:  make(map[string]domain.Order),
		byTxnID: make(map[string]string),
	}
}

// Create stores a new order instance.
func (r *Repository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	r.byTxnID[order.TxnID] = order.ID
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := order
	return &copy, nil
}

// GetByTxnID fetches a single order by its gateway transaction id.
func (r *Repository) GetByTxnID(_ context.Context, txnID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTxnID[txnID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	order := r.orders[id]
	return &order, nil
}

// List returns orders newest first, respecting the provided filter.
// Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Order
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Order{}, nil
	}

	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}

	slice := make([]domain.Order, end-start)
	copy(slice, result[start:end])

	return slice, nil
}

// TransitionStatus moves an order to a new status only if it still has the
// status the caller observed. It reports whether this call made the move.
func (r *Repository) TransitionStatus(_ context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	if order.Status != from {
		return false, nil
	}

	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	return true, nil
}

// SetPaymentIntent replaces the transaction id and locks in the total a
// payment initiation was built for.
func (r *Repository) SetPaymentIntent(_ context.Context, id, txnID string, totalCents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}

	delete(r.byTxnID, order.TxnID)
	order.TxnID = txnID
	order.TotalCents = totalCents
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	r.byTxnID[txnID] = id
	return nil
}

// MarkPaid flips the paid flag for a transaction only if it is not already
// set and the order was not cancelled. The returned bool reports whether this
// call won the flip.
func (r *Repository) MarkPaid(_ context.Context, txnID string, result domain.PaymentResult, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byTxnID[txnID]
	if !ok {
		return false, ports.ErrNotFound
	}
	order := r.orders[id]
	if order.IsPaid || order.Status == domain.StatusCancelled {
		return false, nil
	}

	order.IsPaid = true
	order.PaidAt = &paidAt
	order.PaymentResult = &result
	order.Status = domain.StatusConfirmed
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	return true, nil
}

// RecordPaymentFailure attaches a provider failure outcome to an unpaid
// order. Orders already marked paid are left untouched.
func (r *Repository) RecordPaymentFailure(_ context.Context, txnID string, result domain.PaymentResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byTxnID[txnID]
	if !ok {
		return ports.ErrNotFound
	}
	order := r.orders[id]
	if order.IsPaid {
		return nil
	}

	order.PaymentResult = &result
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	return nil
}
