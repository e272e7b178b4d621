package payu_test

import (
	"errors"
	"testing"

	"github.com/payflow/checkout/internal/payu"
)

func testBuilder() *payu.InitiationBuilder {
	return payu.NewInitiationBuilder(payu.Config{
		MerchantKey:  "merchant-key",
		MerchantSalt: "merchant-salt",
		Mode:         "test",
		SuccessURL:   "https://shop.example.com/api/payments/success",
		FailureURL:   "https://shop.example.com/api/payments/failure",
	})
}

func TestInitiationBuilder(t *testing.T) {
	t.Run("builds a complete signed field set", func(t *testing.T) {
		builder := testBuilder()

		initiation, err := builder.Build(payu.InitiationRequest{
			AmountCents: 49900,
			ProductInfo: "Order abc 2 items",
			FirstName:   "Asha",
			Email:       "ASHA@Example.com",
			Phone:       "+91 98765 43210",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if initiation.TxnID == "" {
			t.Error("expected a transaction id")
		}
		if initiation.PaymentURL != "https://test.payu.in/_payment" {
			t.Errorf("unexpected payment url %q", initiation.PaymentURL)
		}

		fields := initiation.Fields
		if fields["txnid"] != initiation.TxnID {
			t.Error("expected txnid field to match the initiation txnid")
		}
		if fields["amount"] != "499.00" {
			t.Errorf("expected amount 499.00, got %q", fields["amount"])
		}
		if fields["email"] != "asha@example.com" {
			t.Errorf("expected normalized email, got %q", fields["email"])
		}
		if fields["phone"] != "9198765432" {
			t.Errorf("expected sanitized phone, got %q", fields["phone"])
		}
		if fields["surl"] != "https://shop.example.com/api/payments/success" {
			t.Errorf("unexpected surl %q", fields["surl"])
		}
		if fields["service_provider"] != "payu_paisa" {
			t.Errorf("unexpected service_provider %q", fields["service_provider"])
		}

		signer := payu.NewSigner("merchant-key", "merchant-salt")
		want := signer.PaymentHash(
			fields["txnid"], fields["amount"], fields["productinfo"], fields["firstname"], fields["email"],
		)
		if fields["hash"] != want {
			t.Error("expected hash to be the forward hash over the submitted fields")
		}
	})

	t.Run("falls back to a generated productinfo when sanitization empties it", func(t *testing.T) {
		builder := testBuilder()

		initiation, err := builder.Build(payu.InitiationRequest{
			AmountCents: 1000,
			ProductInfo: "|||",
			Email:       "asha@example.com",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if initiation.Fields["productinfo"] == "" {
			t.Error("expected a non-empty productinfo fallback")
		}
	})

	t.Run("live mode targets the live endpoint", func(t *testing.T) {
		builder := payu.NewInitiationBuilder(payu.Config{
			MerchantKey:  "merchant-key",
			MerchantSalt: "merchant-salt",
			Mode:         "live",
		})

		initiation, err := builder.Build(payu.InitiationRequest{AmountCents: 1000, Email: "asha@example.com"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if initiation.PaymentURL != "https://secure.payu.in/_payment" {
			t.Errorf("unexpected payment url %q", initiation.PaymentURL)
		}
	})

	t.Run("rejects missing credentials", func(t *testing.T) {
		builder := payu.NewInitiationBuilder(payu.Config{Mode: "test"})

		_, err := builder.Build(payu.InitiationRequest{AmountCents: 1000, Email: "asha@example.com"})
		if !errors.Is(err, payu.ErrNotConfigured) {
			t.Errorf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		builder := testBuilder()

		for _, cents := range []int64{0, -100} {
			_, err := builder.Build(payu.InitiationRequest{AmountCents: cents, Email: "asha@example.com"})
			if !errors.Is(err, payu.ErrInvalidAmount) {
				t.Errorf("amount %d: expected ErrInvalidAmount, got %v", cents, err)
			}
		}
	})
}
