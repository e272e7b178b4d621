package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher emits order notifications to a Kafka topic. Consumers
// (mail dispatch, fulfillment) are external; the order flow only publishes.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

type notification struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	TxnID      string    `json:"txn_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, orderID, txnID string) error {
	return p.publish(ctx, "order.created", orderID, txnID)
}

func (p *KafkaPublisher) PublishOrderConfirmed(ctx context.Context, orderID, txnID string) error {
	return p.publish(ctx, "order.confirmed", orderID, txnID)
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType, orderID, txnID string) error {
	value, err := json.Marshal(notification{
		Type:       eventType,
		OrderID:    orderID,
		TxnID:      txnID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", eventType, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish %s notification: %w", eventType, err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
