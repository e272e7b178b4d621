package ports

import (
	"context"
	"errors"
	"time"

	"github.com/payflow/checkout/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
//
// MarkPaid is the idempotency point of the whole reconciliation path: it must
// be a single conditional write that flips is_paid only when it is currently
// false and the order was not cancelled, so concurrent deliveries for the
// same transaction cannot both apply the paid effect and a late success
// cannot resurrect a cancelled order. It returns true only for the call that
// won the flip.
//
// TransitionStatus is conditional for the same reason: the caller states the
// status it observed, and the move only applies if that is still the current
// status. It returns true only for the call that performed the move, so
// compensating effects such as stock release run at most once.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByTxnID(ctx context.Context, txnID string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)
	SetPaymentIntent(ctx context.Context, id, txnID string, totalCents int64) error
	MarkPaid(ctx context.Context, txnID string, result domain.PaymentResult, paidAt time.Time) (bool, error)
	RecordPaymentFailure(ctx context.Context, txnID string, result domain.PaymentResult) error
}

// ListFilter narrows list queries by status and pagination.
type ListFilter struct {
	Status   *domain.OrderStatus
	UserID   string
	Page     int
	PageSize int
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
)
