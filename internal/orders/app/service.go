package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/payflow/checkout/internal/catalog"
	"github.com/payflow/checkout/internal/journal"
	"github.com/payflow/checkout/internal/orders/app/commands"
	"github.com/payflow/checkout/internal/orders/app/queries"
	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/metrics"
	"github.com/payflow/checkout/internal/orders/ports"
	"github.com/payflow/checkout/internal/payu"
)

// Service bundles the order and payment use cases exposed via the API.
type Service struct {
	repo          ports.OrderRepository
	reservations  *catalog.ReservationManager
	journal       journal.Journal
	signer        *payu.Signer
	logger        *slog.Logger
	createHandler commands.CreatePendingOrderHandler
	initiate      commands.InitiatePaymentHandler
	apply         commands.ApplyPaymentHandler
	getOrder      *queries.GetOrderQueryHandler
	listOrders    *queries.ListOrdersQueryHandler
}

// Config carries the collaborators Service needs. All fields are required
// except Metrics, which may be nil in tests.
type Config struct {
	Repo                ports.OrderRepository
	Products            catalog.Catalog
	Reservations        *catalog.ReservationManager
	Journal             journal.Journal
	Publisher           ports.NotificationPublisher
	Users               ports.UserDirectory
	Signer              *payu.Signer
	InitiationBuilder   *payu.InitiationBuilder
	CreateUnknownOrders bool
	Logger              *slog.Logger
	Metrics             *metrics.Metrics
}

// NewService wires the command and query handlers, decorating the write paths
// with telemetry when metrics are supplied.
func NewService(cfg Config) *Service {
	var createHandler commands.CreatePendingOrderHandler = commands.NewCreatePendingOrderCommandHandler(
		cfg.Repo, cfg.Products, cfg.Reservations, cfg.Publisher, cfg.Logger,
	)
	var applyHandler commands.ApplyPaymentHandler = commands.NewApplyPaymentCommandHandler(
		cfg.Repo, cfg.Products, cfg.Reservations, cfg.Journal, cfg.Publisher,
		cfg.Signer, cfg.CreateUnknownOrders, cfg.Logger,
	)

	if cfg.Metrics != nil {
		createHandler = commands.NewObservableCreatePendingOrderHandler(createHandler, cfg.Logger, cfg.Metrics)
		applyHandler = commands.NewObservableApplyPaymentHandler(applyHandler, cfg.Logger, cfg.Metrics)
	}

	return &Service{
		repo:          cfg.Repo,
		reservations:  cfg.Reservations,
		journal:       cfg.Journal,
		signer:        cfg.Signer,
		logger:        cfg.Logger,
		createHandler: createHandler,
		initiate:      commands.NewInitiatePaymentCommandHandler(cfg.Repo, cfg.Users, cfg.InitiationBuilder),
		apply:         applyHandler,
		getOrder:      queries.NewGetOrderQueryHandler(cfg.Repo),
		listOrders:    queries.NewListOrdersQueryHandler(cfg.Repo),
	}
}

// CreatePendingOrder prices, reserves stock for, and persists a new order.
func (s *Service) CreatePendingOrder(ctx context.Context, cmd commands.CreatePendingOrderCommand) (*domain.Order, error) {
	return s.createHandler.Handle(ctx, cmd)
}

// InitiatePayment builds signed gateway form fields for a pending order.
func (s *Service) InitiatePayment(ctx context.Context, cmd commands.InitiatePaymentCommand) (*payu.Initiation, error) {
	return s.initiate.Handle(ctx, cmd)
}

// ApplyPaymentConfirmation processes a verified success callback, whichever
// delivery path it arrived on.
func (s *Service) ApplyPaymentConfirmation(ctx context.Context, cmd commands.ApplyPaymentCommand) (*commands.PaymentOutcome, error) {
	return s.apply.Handle(ctx, cmd)
}

// RecordPaymentFailure journals a failure callback and attaches the provider
// outcome to the matching order without ever flipping its paid flag.
func (s *Service) RecordPaymentFailure(ctx context.Context, cmd commands.ApplyPaymentCommand) error {
	valid := s.signer.VerifyNotification(cmd.Notification)

	event := journal.Event{
		Provider:       "payu",
		Payload:        cmd.Payload,
		RawBody:        string(cmd.RawBody),
		RemoteAddr:     cmd.RemoteAddr,
		SignatureValid: valid,
		Status:         cmd.Notification.Status,
		ReceivedAt:     time.Now().UTC(),
	}
	if _, err := s.journal.Record(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to journal payment failure",
			"txn_id", cmd.Notification.TxnID,
			"error", err,
		)
	}

	if !valid {
		return ports.ErrInvalidSignature
	}

	result := domain.PaymentResult{
		Reference: cmd.Notification.TxnID,
		Status:    cmd.Notification.Status,
	}
	if err := s.repo.RecordPaymentFailure(ctx, cmd.Notification.TxnID, result); err != nil {
		s.logger.WarnContext(ctx, "could not attach failure to order",
			"txn_id", cmd.Notification.TxnID,
			"error", err,
		)
	}

	return nil
}

// GetOrder retrieves an order by ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// GetOrderByTxnID retrieves an order by its gateway transaction id.
func (s *Service) GetOrderByTxnID(ctx context.Context, txnID string) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{TxnID: txnID})
}

// ListOrders returns a page of orders using a filter.
func (s *Service) ListOrders(ctx context.Context, query queries.ListOrdersQuery) ([]domain.Order, error) {
	return s.listOrders.Handle(ctx, query)
}

// CancelOrder cancels an order if its status allows it and releases the stock
// its line items hold. The transition is a conditional write keyed on the
// status the order had when loaded, so two racing cancels cannot both release
// the stock.
func (s *Service) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(domain.StatusCancelled) {
		return nil, ports.ErrInvalidTransition
	}

	won, err := s.repo.TransitionStatus(ctx, id, order.Status, domain.StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another request changed the status in between.
		return nil, ports.ErrInvalidTransition
	}

	lines := make([]catalog.Line, len(order.Items))
	for i, item := range order.Items {
		lines[i] = catalog.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if err := s.reservations.Release(ctx, lines); err != nil {
		s.logger.ErrorContext(ctx, "failed to release stock for cancelled order",
			"order_id", id,
			"error", err,
		)
	}

	order.Status = domain.StatusCancelled
	order.UpdatedAt = time.Now().UTC()

	return order, nil
}

// UpdateOrderStatus applies a fulfilment status change guarded by the order
// state machine.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, target domain.OrderStatus) (*domain.Order, error) {
	if !target.IsValid() {
		return nil, ports.ErrInvalidTransition
	}
	if target == domain.StatusCancelled {
		return s.CancelOrder(ctx, id)
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(target) {
		return nil, ports.ErrInvalidTransition
	}

	won, err := s.repo.TransitionStatus(ctx, id, order.Status, target)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ports.ErrInvalidTransition
	}

	order.Status = target
	order.UpdatedAt = time.Now().UTC()

	return order, nil
}
