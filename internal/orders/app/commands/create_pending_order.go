package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/payflow/checkout/internal/catalog"
	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
	"github.com/payflow/checkout/internal/payu"
)

// ItemInput is one requested line of a new order. PriceCents is accepted for
// wire compatibility but never trusted: the handler reprices every line from
// the catalog.
type ItemInput struct {
	ProductID  string
	Quantity   int
	PriceCents int64
}

type CreatePendingOrderCommand struct {
	UserID   string
	Items    []ItemInput
	Shipping domain.ShippingAddress
}

func (c CreatePendingOrderCommand) Validate() error {
	if len(c.Items) == 0 {
		return errors.New("order must have at least one item")
	}
	for _, item := range c.Items {
		if item.ProductID == "" {
			return errors.New("item product_id is required")
		}
		if item.Quantity < 1 {
			return errors.New("item quantity must be at least 1")
		}
	}
	return nil
}

// CreatePendingOrderHandler is implemented by the core handler and its
// observable wrapper.
type CreatePendingOrderHandler interface {
	Handle(ctx context.Context, cmd CreatePendingOrderCommand) (*domain.Order, error)
}

type CreatePendingOrderCommandHandler struct {
	repo         ports.OrderRepository
	products     catalog.Catalog
	reservations *catalog.ReservationManager
	publisher    ports.NotificationPublisher
	logger       *slog.Logger
}

func NewCreatePendingOrderCommandHandler(
	repo ports.OrderRepository,
	products catalog.Catalog,
	reservations *catalog.ReservationManager,
	publisher ports.NotificationPublisher,
	logger *slog.Logger,
) *CreatePendingOrderCommandHandler {
	return &CreatePendingOrderCommandHandler{
		repo:         repo,
		products:     products,
		reservations: reservations,
		publisher:    publisher,
		logger:       logger,
	}
}

// Handle prices the requested items from the catalog, reserves stock
// atomically, and persists a pending order carrying a fresh transaction id.
// Stock is reserved here, at creation time, not when payment confirmation
// arrives.
func (h *CreatePendingOrderCommandHandler) Handle(ctx context.Context, cmd CreatePendingOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	items, total, err := h.priceItems(ctx, cmd.Items)
	if err != nil {
		return nil, err
	}

	lines := reservationLines(items)
	if err := h.reservations.Reserve(ctx, lines); err != nil {
		return nil, err
	}

	orderID, err := generateOrderID()
	if err != nil {
		h.releaseQuietly(ctx, lines)
		return nil, err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:            orderID,
		UserID:        cmd.UserID,
		TxnID:         payu.NewTxnID(),
		Items:         items,
		Shipping:      cmd.Shipping,
		PaymentMethod: domain.PaymentMethodGateway,
		TotalCents:    total,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := order.Validate(); err != nil {
		h.releaseQuietly(ctx, lines)
		return nil, err
	}

	if err := h.repo.Create(ctx, order); err != nil {
		h.releaseQuietly(ctx, lines)
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := h.publisher.PublishOrderCreated(ctx, order.ID, order.TxnID); err != nil {
		h.logger.ErrorContext(ctx, "failed to publish order created notification",
			"order_id", order.ID,
			"error", err,
		)
	}

	return &order, nil
}

// priceItems resolves catalog prices for the requested products, discarding
// any client-supplied prices.
func (h *CreatePendingOrderCommandHandler) priceItems(ctx context.Context, inputs []ItemInput) ([]domain.LineItem, int64, error) {
	ids := make([]string, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, item := range inputs {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := h.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("load products: %w", err)
	}

	priceByID := make(map[string]int64, len(products))
	for _, p := range products {
		priceByID[p.ID] = p.PriceCents
	}

	items := make([]domain.LineItem, 0, len(inputs))
	var total int64
	for _, input := range inputs {
		price := priceByID[input.ProductID]
		items = append(items, domain.LineItem{
			ProductID:  input.ProductID,
			Quantity:   input.Quantity,
			PriceCents: price,
		})
		total += price * int64(input.Quantity)
	}

	return items, total, nil
}

func (h *CreatePendingOrderCommandHandler) releaseQuietly(ctx context.Context, lines []catalog.Line) {
	if err := h.reservations.Release(ctx, lines); err != nil {
		h.logger.ErrorContext(ctx, "failed to release reservation after aborted order", "error", err)
	}
}

func reservationLines(items []domain.LineItem) []catalog.Line {
	lines := make([]catalog.Line, len(items))
	for i, item := range items {
		lines[i] = catalog.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}

func generateOrderID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
