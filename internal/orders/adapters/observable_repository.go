package adapters

import (
	"context"
	"time"

	"github.com/payflow/checkout/internal/database"
	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
	"github.com/payflow/checkout/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Create")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("operation", "create"),
	)

	start := time.Now()
	err := r.repo.Create(ctx, order)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "create_order", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.GetByID")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("operation", "get_by_id"),
	)

	start := time.Now()
	order, err := r.repo.GetByID(ctx, id)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "get_order_by_id", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

func (r *ObservableRepository) GetByTxnID(ctx context.Context, txnID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.GetByTxnID")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.txn_id", txnID),
		attribute.String("operation", "get_by_txn_id"),
	)

	start := time.Now()
	order, err := r.repo.GetByTxnID(ctx, txnID)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "get_order_by_txn_id", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.List")
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("operation", "list"),
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}
	telemetry.AddSpanAttributes(span, attrs...)

	start := time.Now()
	orders, err := r.repo.List(ctx, filter)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "list_orders", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
	telemetry.SetSpanSuccess(span)
	return orders, nil
}

func (r *ObservableRepository) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.TransitionStatus")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("order.from_status", string(from)),
		attribute.String("order.new_status", string(to)),
		attribute.String("operation", "transition_status"),
	)

	start := time.Now()
	won, err := r.repo.TransitionStatus(ctx, id, from, to)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "transition_order_status", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return false, err
	}

	telemetry.AddSpanAttributes(span, attribute.Bool("order.transitioned", won))
	telemetry.SetSpanSuccess(span)
	return won, nil
}

func (r *ObservableRepository) SetPaymentIntent(ctx context.Context, id, txnID string, totalCents int64) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.SetPaymentIntent")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("order.txn_id", txnID),
		attribute.String("operation", "set_payment_intent"),
	)

	start := time.Now()
	err := r.repo.SetPaymentIntent(ctx, id, txnID, totalCents)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "set_payment_intent", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) MarkPaid(ctx context.Context, txnID string, result domain.PaymentResult, paidAt time.Time) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.MarkPaid")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.txn_id", txnID),
		attribute.String("operation", "mark_paid"),
	)

	start := time.Now()
	won, err := r.repo.MarkPaid(ctx, txnID, result, paidAt)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "mark_order_paid", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return false, err
	}

	telemetry.AddSpanAttributes(span, attribute.Bool("payment.applied", won))
	telemetry.SetSpanSuccess(span)
	return won, nil
}

func (r *ObservableRepository) RecordPaymentFailure(ctx context.Context, txnID string, result domain.PaymentResult) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.RecordPaymentFailure")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.txn_id", txnID),
		attribute.String("operation", "record_payment_failure"),
	)

	start := time.Now()
	err := r.repo.RecordPaymentFailure(ctx, txnID, result)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "record_payment_failure", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
