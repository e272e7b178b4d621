package notifications

import (
	"context"
	"log/slog"
)

// NoopPublisher logs notifications without sending them anywhere. Used when
// no Kafka brokers are configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (n *NoopPublisher) PublishOrderCreated(_ context.Context, orderID, txnID string) error {
	slog.Debug("notification::order_created", "order_id", orderID, "txn_id", txnID)
	return nil
}

func (n *NoopPublisher) PublishOrderConfirmed(_ context.Context, orderID, txnID string) error {
	slog.Debug("notification::order_confirmed", "order_id", orderID, "txn_id", txnID)
	return nil
}
