package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/payflow/checkout/internal/catalog"
	"github.com/payflow/checkout/internal/journal"
	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
	"github.com/payflow/checkout/internal/payu"
)

// ApplyPaymentCommand carries a gateway payment callback, whether it arrived
// as a server-to-server webhook or a browser redirect. Both delivery paths
// apply the exact same confirmation.
type ApplyPaymentCommand struct {
	Notification payu.Notification
	Payload      map[string]string
	RawBody      []byte
	RemoteAddr   string
	// ProductsJSON and ShippingJSON are optional gateway passthrough fields
	// used to reconstruct an order when the transaction is unknown.
	ProductsJSON string
	ShippingJSON string
}

// PaymentOutcome reports what a confirmation did. Applied is false for
// duplicate deliveries of an already-confirmed transaction. ManualReview is
// set when the event was journaled but could not be applied to any order.
type PaymentOutcome struct {
	Order        *domain.Order
	Applied      bool
	ManualReview bool
}

type ApplyPaymentHandler interface {
	Handle(ctx context.Context, cmd ApplyPaymentCommand) (*PaymentOutcome, error)
}

type ApplyPaymentCommandHandler struct {
	repo                ports.OrderRepository
	products            catalog.Catalog
	reservations        *catalog.ReservationManager
	journal             journal.Journal
	publisher           ports.NotificationPublisher
	signer              *payu.Signer
	createUnknownOrders bool
	logger              *slog.Logger
}

func NewApplyPaymentCommandHandler(
	repo ports.OrderRepository,
	products catalog.Catalog,
	reservations *catalog.ReservationManager,
	eventJournal journal.Journal,
	publisher ports.NotificationPublisher,
	signer *payu.Signer,
	createUnknownOrders bool,
	logger *slog.Logger,
) *ApplyPaymentCommandHandler {
	return &ApplyPaymentCommandHandler{
		repo:                repo,
		products:            products,
		reservations:        reservations,
		journal:             eventJournal,
		publisher:           publisher,
		signer:              signer,
		createUnknownOrders: createUnknownOrders,
		logger:              logger,
	}
}

// Handle journals the callback, verifies its signature, and confirms the
// matching order exactly once. Redeliveries of an already-applied transaction
// succeed without side effects.
func (h *ApplyPaymentCommandHandler) Handle(ctx context.Context, cmd ApplyPaymentCommand) (*PaymentOutcome, error) {
	valid := h.signer.VerifyNotification(cmd.Notification)

	eventID := h.record(ctx, cmd, valid)

	if !valid {
		h.amend(ctx, eventID, "signature verification failed")
		return nil, ports.ErrInvalidSignature
	}
	if cmd.Notification.Status != payu.StatusSuccess {
		h.amend(ctx, eventID, fmt.Sprintf("payment status %q", cmd.Notification.Status))
		return nil, ports.ErrPaymentNotSuccessful
	}

	order, err := h.repo.GetByTxnID(ctx, cmd.Notification.TxnID)
	if errors.Is(err, ports.ErrNotFound) {
		return h.handleUnknownTransaction(ctx, cmd, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order by transaction id: %w", err)
	}

	return h.confirm(ctx, order, cmd.Notification, eventID)
}

// confirm applies a verified success notification. MarkPaid is conditional on
// the order being unpaid and not cancelled, so the loser of either race falls
// through to the reload: a duplicate delivery is acknowledged without side
// effects, and a payment for a cancelled order (whose stock has already been
// released) is flagged for manual review instead of confirming.
func (h *ApplyPaymentCommandHandler) confirm(ctx context.Context, order *domain.Order, n payu.Notification, eventID string) (*PaymentOutcome, error) {
	result := domain.PaymentResult{
		Reference: n.TxnID,
		Status:    n.Status,
	}

	won, err := h.repo.MarkPaid(ctx, n.TxnID, result, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	current, err := h.repo.GetByTxnID(ctx, n.TxnID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	if !won {
		if !current.IsPaid && current.Status == domain.StatusCancelled {
			h.amend(ctx, eventID, "payment received for cancelled order")
			h.logger.WarnContext(ctx, "payment confirmation for cancelled order",
				"order_id", current.ID,
				"txn_id", n.TxnID,
			)
			return &PaymentOutcome{Order: current, ManualReview: true}, nil
		}
		h.logger.InfoContext(ctx, "duplicate payment confirmation ignored",
			"order_id", current.ID,
			"txn_id", n.TxnID,
		)
		return &PaymentOutcome{Order: current, Applied: false}, nil
	}

	if err := h.publisher.PublishOrderConfirmed(ctx, current.ID, current.TxnID); err != nil {
		h.logger.ErrorContext(ctx, "failed to publish order confirmed notification",
			"order_id", current.ID,
			"error", err,
		)
	}

	return &PaymentOutcome{Order: current, Applied: true}, nil
}

// handleUnknownTransaction deals with a verified, successful payment for a
// transaction id no order carries. With order creation disabled (the default)
// the event stays in the journal flagged for manual review; the money has
// already moved, so the caller still acknowledges the delivery.
func (h *ApplyPaymentCommandHandler) handleUnknownTransaction(ctx context.Context, cmd ApplyPaymentCommand, eventID string) (*PaymentOutcome, error) {
	if !h.createUnknownOrders || cmd.ProductsJSON == "" {
		h.amend(ctx, eventID, "no order for transaction id")
		h.logger.WarnContext(ctx, "payment confirmation for unknown transaction",
			"txn_id", cmd.Notification.TxnID,
		)
		return &PaymentOutcome{ManualReview: true}, nil
	}

	items, total, err := h.itemsFromPayload(ctx, cmd.ProductsJSON)
	if err != nil {
		h.amend(ctx, eventID, err.Error())
		h.logger.WarnContext(ctx, "could not reconstruct order from gateway payload",
			"txn_id", cmd.Notification.TxnID,
			"error", err,
		)
		return &PaymentOutcome{ManualReview: true}, nil
	}

	lines := reservationLines(items)
	if err := h.reservations.Reserve(ctx, lines); err != nil {
		h.amend(ctx, eventID, err.Error())
		h.logger.WarnContext(ctx, "could not reserve stock for reconstructed order",
			"txn_id", cmd.Notification.TxnID,
			"error", err,
		)
		return &PaymentOutcome{ManualReview: true}, nil
	}

	orderID, err := generateOrderID()
	if err != nil {
		h.releaseQuietlyApply(ctx, lines)
		return nil, err
	}

	now := time.Now().UTC()
	paidAt := now
	order := domain.Order{
		ID:            orderID,
		TxnID:         cmd.Notification.TxnID,
		Items:         items,
		Shipping:      shippingFromPayload(cmd.ShippingJSON, cmd.Notification),
		PaymentMethod: domain.PaymentMethodGateway,
		TotalCents:    total,
		IsPaid:        true,
		PaidAt:        &paidAt,
		PaymentResult: &domain.PaymentResult{
			Reference: cmd.Notification.TxnID,
			Status:    cmd.Notification.Status,
		},
		Status:    domain.StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(ctx, order); err != nil {
		h.releaseQuietlyApply(ctx, lines)
		return nil, fmt.Errorf("create order from confirmation: %w", err)
	}

	if err := h.publisher.PublishOrderConfirmed(ctx, order.ID, order.TxnID); err != nil {
		h.logger.ErrorContext(ctx, "failed to publish order confirmed notification",
			"order_id", order.ID,
			"error", err,
		)
	}

	return &PaymentOutcome{Order: &order, Applied: true}, nil
}

type payloadItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *ApplyPaymentCommandHandler) itemsFromPayload(ctx context.Context, productsJSON string) ([]domain.LineItem, int64, error) {
	var raw []payloadItem
	if err := json.Unmarshal([]byte(productsJSON), &raw); err != nil {
		return nil, 0, fmt.Errorf("parse products payload: %w", err)
	}
	if len(raw) == 0 {
		return nil, 0, errors.New("products payload is empty")
	}

	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		if item.ProductID == "" || item.Quantity < 1 {
			return nil, 0, errors.New("products payload has invalid line")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := h.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("load products: %w", err)
	}
	priceByID := make(map[string]int64, len(products))
	for _, p := range products {
		priceByID[p.ID] = p.PriceCents
	}

	items := make([]domain.LineItem, 0, len(raw))
	var total int64
	for _, item := range raw {
		price, ok := priceByID[item.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, item.ProductID)
		}
		items = append(items, domain.LineItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: price,
		})
		total += price * int64(item.Quantity)
	}

	return items, total, nil
}

func shippingFromPayload(shippingJSON string, n payu.Notification) domain.ShippingAddress {
	shipping := domain.ShippingAddress{
		FirstName: n.FirstName,
		Email:     n.Email,
	}
	if shippingJSON == "" {
		return shipping
	}
	var parsed domain.ShippingAddress
	if err := json.Unmarshal([]byte(shippingJSON), &parsed); err != nil {
		return shipping
	}
	if parsed.FirstName == "" {
		parsed.FirstName = n.FirstName
	}
	if parsed.Email == "" {
		parsed.Email = n.Email
	}
	return parsed
}

func (h *ApplyPaymentCommandHandler) record(ctx context.Context, cmd ApplyPaymentCommand, valid bool) string {
	event := journal.Event{
		Provider:       "payu",
		Payload:        cmd.Payload,
		RawBody:        string(cmd.RawBody),
		RemoteAddr:     cmd.RemoteAddr,
		SignatureValid: valid,
		Status:         cmd.Notification.Status,
		ReceivedAt:     time.Now().UTC(),
	}
	id, err := h.journal.Record(ctx, event)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to journal payment event",
			"txn_id", cmd.Notification.TxnID,
			"error", err,
		)
		return ""
	}
	return id
}

func (h *ApplyPaymentCommandHandler) amend(ctx context.Context, eventID, reason string) {
	if eventID == "" {
		return
	}
	if err := h.journal.AmendFailure(ctx, eventID, reason); err != nil {
		h.logger.ErrorContext(ctx, "failed to amend journal entry", "event_id", eventID, "error", err)
	}
}

func (h *ApplyPaymentCommandHandler) releaseQuietlyApply(ctx context.Context, lines []catalog.Line) {
	if err := h.reservations.Release(ctx, lines); err != nil {
		h.logger.ErrorContext(ctx, "failed to release reservation after aborted order", "error", err)
	}
}
