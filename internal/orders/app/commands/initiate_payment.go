package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
	"github.com/payflow/checkout/internal/payu"
)

type InitiatePaymentCommand struct {
	OrderID   string
	FirstName string
	Email     string
	Phone     string
}

func (c InitiatePaymentCommand) Validate() error {
	if c.OrderID == "" {
		return errors.New("order_id is required")
	}
	return nil
}

type InitiatePaymentHandler interface {
	Handle(ctx context.Context, cmd InitiatePaymentCommand) (*payu.Initiation, error)
}

type InitiatePaymentCommandHandler struct {
	repo    ports.OrderRepository
	users   ports.UserDirectory
	builder *payu.InitiationBuilder
}

func NewInitiatePaymentCommandHandler(repo ports.OrderRepository, users ports.UserDirectory, builder *payu.InitiationBuilder) *InitiatePaymentCommandHandler {
	return &InitiatePaymentCommandHandler{repo: repo, users: users, builder: builder}
}

// Handle builds signed gateway form fields for a pending order. The amount is
// taken from the stored order total, never from the request, and the order's
// transaction id is replaced with the freshly issued one so each initiation
// attempt is distinct at the gateway.
func (h *InitiatePaymentCommandHandler) Handle(ctx context.Context, cmd InitiatePaymentCommand) (*payu.Initiation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	order, err := h.repo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return nil, ports.ErrOrderAlreadyPaid
	}
	if order.Status != domain.StatusPending {
		return nil, ports.ErrInvalidTransition
	}

	firstName, email, err := h.resolveIdentity(ctx, cmd, order)
	if err != nil {
		return nil, err
	}

	phone := cmd.Phone
	if phone == "" {
		phone = order.Shipping.Phone
	}

	initiation, err := h.builder.Build(payu.InitiationRequest{
		AmountCents: order.TotalCents,
		ProductInfo: productInfo(order),
		FirstName:   firstName,
		Email:       email,
		Phone:       phone,
	})
	if err != nil {
		return nil, fmt.Errorf("build payment initiation: %w", err)
	}

	if err := h.repo.SetPaymentIntent(ctx, order.ID, initiation.TxnID, order.TotalCents); err != nil {
		return nil, fmt.Errorf("store payment intent: %w", err)
	}

	return initiation, nil
}

// resolveIdentity fills in the customer fields from the request, falling back
// to the order's shipping contact and then the user directory.
func (h *InitiatePaymentCommandHandler) resolveIdentity(ctx context.Context, cmd InitiatePaymentCommand, order *domain.Order) (firstName, email string, err error) {
	firstName = cmd.FirstName
	email = cmd.Email

	if firstName == "" {
		firstName = order.Shipping.FirstName
	}
	if email == "" {
		email = order.Shipping.Email
	}

	if (firstName == "" || email == "") && order.UserID != "" && h.users != nil {
		user, err := h.users.GetByID(ctx, order.UserID)
		if err != nil {
			return "", "", fmt.Errorf("look up user: %w", err)
		}
		if user != nil {
			if firstName == "" {
				firstName = user.Name
			}
			if email == "" {
				email = user.Email
			}
		}
	}

	if email == "" {
		return "", "", errors.New("email is required")
	}
	return firstName, email, nil
}

func productInfo(order *domain.Order) string {
	if len(order.Items) == 1 {
		return fmt.Sprintf("Order %s (1 item)", order.ID)
	}
	return fmt.Sprintf("Order %s (%d items)", order.ID, len(order.Items))
}
