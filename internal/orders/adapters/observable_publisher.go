package adapters

import (
	"context"
	"time"

	"github.com/payflow/checkout/internal/notifications"
	"github.com/payflow/checkout/internal/orders/ports"
	"github.com/payflow/checkout/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservablePublisher struct {
	publisher ports.NotificationPublisher
	metrics   *notifications.Metrics
}

func NewObservablePublisher(publisher ports.NotificationPublisher, metrics *notifications.Metrics) *ObservablePublisher {
	return &ObservablePublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *ObservablePublisher) PublishOrderCreated(ctx context.Context, orderID, txnID string) error {
	ctx, span := telemetry.StartSpan(ctx, "NotificationPublisher.PublishOrderCreated")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("order.txn_id", txnID),
		attribute.String("event.type", "order.created"),
	)

	start := time.Now()
	err := p.publisher.PublishOrderCreated(ctx, orderID, txnID)
	duration := time.Since(start).Seconds()

	p.metrics.RecordPublish(ctx, "order.created", duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (p *ObservablePublisher) PublishOrderConfirmed(ctx context.Context, orderID, txnID string) error {
	ctx, span := telemetry.StartSpan(ctx, "NotificationPublisher.PublishOrderConfirmed")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("order.txn_id", txnID),
		attribute.String("event.type", "order.confirmed"),
	)

	start := time.Now()
	err := p.publisher.PublishOrderConfirmed(ctx, orderID, txnID)
	duration := time.Since(start).Seconds()

	p.metrics.RecordPublish(ctx, "order.confirmed", duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
