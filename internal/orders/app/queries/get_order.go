package queries

import (
	"context"
	"errors"
	"strings"

	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
)

// GetOrderQuery retrieves an order by its ID, or by its gateway
// transaction id when TxnID is set instead.
type GetOrderQuery struct {
	OrderID string
	TxnID   string
}

// Validate ensures exactly one lookup key is present.
func (q GetOrderQuery) Validate() error {
	byID := strings.TrimSpace(q.OrderID) != ""
	byTxn := strings.TrimSpace(q.TxnID) != ""
	if byID == byTxn {
		return errors.New("exactly one of order_id or txn_id is required")
	}
	return nil
}

type GetOrderQueryHandler struct {
	repo ports.OrderRepository
}

func NewGetOrderQueryHandler(repo ports.OrderRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{repo: repo}
}

func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(query.TxnID) != "" {
		return h.repo.GetByTxnID(ctx, query.TxnID)
	}

	return h.repo.GetByID(ctx, query.OrderID)
}
