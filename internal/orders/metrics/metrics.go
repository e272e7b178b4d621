package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	ordersCreatedTotal    metric.Int64Counter
	orderCreationDuration metric.Float64Histogram
	paymentsAppliedTotal  metric.Int64Counter
	paymentApplyDuration  metric.Float64Histogram
	webhookEventsTotal    metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersCreatedTotal, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of orders created"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	m.orderCreationDuration, err = meter.Float64Histogram(
		"order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_creation_duration histogram: %w", err)
	}

	m.paymentsAppliedTotal, err = meter.Int64Counter(
		"payments_applied_total",
		metric.WithDescription("Total number of payment confirmations processed"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payments_applied_total counter: %w", err)
	}

	m.paymentApplyDuration, err = meter.Float64Histogram(
		"payment_apply_duration_seconds",
		metric.WithDescription("Duration of payment confirmation processing"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_apply_duration histogram: %w", err)
	}

	m.webhookEventsTotal, err = meter.Int64Counter(
		"gateway_webhook_events_total",
		metric.WithDescription("Total number of gateway webhook deliveries received"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create gateway_webhook_events_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, success bool) {
	m.ordersCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", statusLabel(success)),
	))
}

func (m *Metrics) RecordOrderCreationDuration(ctx context.Context, durationSeconds float64) {
	m.orderCreationDuration.Record(ctx, durationSeconds)
}

// RecordPaymentApplied counts a processed confirmation by outcome:
// "applied", "duplicate", "manual_review" or "error".
func (m *Metrics) RecordPaymentApplied(ctx context.Context, outcome string) {
	m.paymentsAppliedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordPaymentApplyDuration(ctx context.Context, durationSeconds float64) {
	m.paymentApplyDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordWebhookEvent(ctx context.Context, signatureValid bool) {
	m.webhookEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("signature_valid", signatureValid),
	))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
