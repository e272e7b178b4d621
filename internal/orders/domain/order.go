package domain

import (
	"errors"
	"time"
)

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// PaymentMethodGateway tags orders paid through the hosted checkout gateway.
const PaymentMethodGateway = "payu"

// IsValid reports whether s is a known lifecycle status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

var validTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// LineItem is a product reference within an order. PriceCents is always the
// catalog price captured at order-creation time, never a client-supplied value.
type LineItem struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// ShippingAddress is the destination recorded with an order. The contact
// fields feed the payment initiation as customer identity fallbacks.
type ShippingAddress struct {
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// PaymentResult is the opaque provider outcome attached to an order once a
// notification for its transaction has been processed.
type PaymentResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Order represents a purchase managed by the system. TxnID correlates the
// order with gateway notifications and is unique across orders.
type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id,omitempty"`
	TxnID         string          `json:"txn_id"`
	Items         []LineItem      `json:"items"`
	Shipping      ShippingAddress `json:"shipping_address"`
	PaymentMethod string          `json:"payment_method"`
	TotalCents    int64           `json:"total_cents"`
	IsPaid        bool            `json:"is_paid"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	PaymentResult *PaymentResult  `json:"payment_result,omitempty"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if o.TxnID == "" {
		return errors.New("txn_id is required")
	}
	if len(o.Items) == 0 {
		return errors.New("order must have at least one line item")
	}
	var total int64
	for _, item := range o.Items {
		if item.ProductID == "" {
			return errors.New("line item product_id is required")
		}
		if item.Quantity < 1 {
			return errors.New("line item quantity must be at least 1")
		}
		if item.PriceCents < 0 {
			return errors.New("line item price must not be negative")
		}
		total += item.PriceCents * int64(item.Quantity)
	}
	if o.TotalCents != total {
		return errors.New("total_cents must equal the sum of line item prices")
	}
	return nil
}

// IsTerminal indicates whether the order is in a terminal state.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the status machine allows moving from the
// order's current status to the target.
func (o Order) CanTransitionTo(target OrderStatus) bool {
	for _, next := range validTransitions[o.Status] {
		if next == target {
			return true
		}
	}
	return false
}
