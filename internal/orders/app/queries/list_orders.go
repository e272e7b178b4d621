package queries

import (
	"context"
	"fmt"

	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListOrdersQuery retrieves a page of orders, optionally filtered by status
// or user.
type ListOrdersQuery struct {
	Status   string
	UserID   string
	Page     int
	PageSize int
}

func (q ListOrdersQuery) Validate() error {
	if q.Status != "" && !domain.OrderStatus(q.Status).IsValid() {
		return fmt.Errorf("unknown order status %q", q.Status)
	}
	if q.Page < 0 {
		return fmt.Errorf("page must not be negative")
	}
	if q.PageSize < 0 || q.PageSize > maxPageSize {
		return fmt.Errorf("page_size must be between 0 and %d", maxPageSize)
	}
	return nil
}

type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	filter := ports.ListFilter{
		UserID:   query.UserID,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Status != "" {
		status := domain.OrderStatus(query.Status)
		filter.Status = &status
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = defaultPageSize
	}

	return h.repo.List(ctx, filter)
}
