package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/payflow/checkout/internal/orders/metrics"
	"github.com/payflow/checkout/internal/orders/ports"
	"github.com/payflow/checkout/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableApplyPaymentHandler struct {
	handler ApplyPaymentHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableApplyPaymentHandler(handler ApplyPaymentHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableApplyPaymentHandler {
	return &ObservableApplyPaymentHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableApplyPaymentHandler) Handle(ctx context.Context, cmd ApplyPaymentCommand) (*PaymentOutcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "ApplyPaymentCommand.Handle")
	defer span.End()

	start := time.Now()
	outcomeLabel := "error"
	defer func() {
		duration := time.Since(start).Seconds()
		o.metrics.RecordPaymentApplyDuration(ctx, duration)
		o.metrics.RecordPaymentApplied(ctx, outcomeLabel)
	}()

	o.logger.InfoContext(ctx, "applying payment confirmation",
		"txn_id", cmd.Notification.TxnID,
		"gateway_status", cmd.Notification.Status,
	)

	outcome, err := o.handler.Handle(ctx, cmd)

	// Every delivery is counted, tagged by whether its signature verified.
	o.metrics.RecordWebhookEvent(ctx, !errors.Is(err, ports.ErrInvalidSignature))

	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to apply payment confirmation",
			"error", err,
			"txn_id", cmd.Notification.TxnID,
		)
		return nil, err
	}

	switch {
	case outcome.ManualReview:
		outcomeLabel = "manual_review"
	case outcome.Applied:
		outcomeLabel = "applied"
	default:
		outcomeLabel = "duplicate"
	}

	attrs := []attribute.KeyValue{
		attribute.String("payment.txn_id", cmd.Notification.TxnID),
		attribute.String("payment.outcome", outcomeLabel),
	}
	if outcome.Order != nil {
		attrs = append(attrs, attribute.String("order.id", outcome.Order.ID))
	}
	telemetry.AddSpanAttributes(span, attrs...)

	o.logger.InfoContext(ctx, "payment confirmation processed",
		"txn_id", cmd.Notification.TxnID,
		"outcome", outcomeLabel,
	)

	telemetry.SetSpanSuccess(span)

	return outcome, nil
}
