package ports

import "context"

// NotificationPublisher dispatches order lifecycle notifications to downstream
// consumers (mail, fulfillment). Publishing is fire-and-forget from the order
// flow's perspective: a publish failure never rolls back an order mutation.
type NotificationPublisher interface {
	PublishOrderCreated(ctx context.Context, orderID, txnID string) error
	PublishOrderConfirmed(ctx context.Context, orderID, txnID string) error
}
