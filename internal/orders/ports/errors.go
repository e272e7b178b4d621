package ports

import "errors"

var (
	// ErrInvalidSignature is returned when a gateway callback fails signature
	// verification.
	ErrInvalidSignature = errors.New("invalid gateway signature")

	// ErrPaymentNotSuccessful is returned when a verified callback declares a
	// non-success payment status.
	ErrPaymentNotSuccessful = errors.New("payment not successful")

	// ErrInvalidTransition is returned when a status change violates the
	// order state machine.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrOrderAlreadyPaid is returned when payment is initiated for an order
	// that has already been confirmed.
	ErrOrderAlreadyPaid = errors.New("order already paid")
)
