package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/metrics"
	"github.com/payflow/checkout/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableCreatePendingOrderHandler struct {
	handler CreatePendingOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCreatePendingOrderHandler(handler CreatePendingOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCreatePendingOrderHandler {
	return &ObservableCreatePendingOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCreatePendingOrderHandler) Handle(ctx context.Context, cmd CreatePendingOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreatePendingOrderCommand.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		duration := time.Since(start).Seconds()
		o.metrics.RecordOrderCreationDuration(ctx, duration)
		o.metrics.RecordOrderCreated(ctx, success)
	}()

	o.logger.InfoContext(ctx, "creating order",
		"user_id", cmd.UserID,
		"item_count", len(cmd.Items),
	)

	order, err := o.handler.Handle(ctx, cmd)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to create order",
			"error", err,
			"user_id", cmd.UserID,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.txn_id", order.TxnID),
		attribute.Int64("order.total_cents", order.TotalCents),
		attribute.String("order.status", string(order.Status)),
	)

	o.logger.InfoContext(ctx, "order created successfully",
		"order_id", order.ID,
		"txn_id", order.TxnID,
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return order, nil
}
