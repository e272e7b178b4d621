package payu_test

import (
	"strings"
	"testing"

	"github.com/payflow/checkout/internal/payu"
)

func validNotification(signer *payu.Signer) payu.Notification {
	n := payu.Notification{
		Key:         "merchant-key",
		TxnID:       "tx_1700000000000_ab12cd34",
		Amount:      "499.00",
		ProductInfo: "Order abc 2 items",
		FirstName:   "Asha",
		Email:       "asha@example.com",
		Status:      "success",
	}
	n.Hash = signer.ResponseHash(n)
	return n
}

func TestVerifyNotification(t *testing.T) {
	signer := payu.NewSigner("merchant-key", "merchant-salt")

	t.Run("accepts a correctly signed notification", func(t *testing.T) {
		n := validNotification(signer)

		if !signer.VerifyNotification(n) {
			t.Fatal("expected notification to verify")
		}
	})

	t.Run("rejects a tampered amount", func(t *testing.T) {
		n := validNotification(signer)
		n.Amount = "499.01"

		if signer.VerifyNotification(n) {
			t.Fatal("expected tampered amount to fail verification")
		}
	})

	t.Run("rejects a tampered txnid", func(t *testing.T) {
		n := validNotification(signer)
		n.TxnID = "tx_1700000000000_ab12cd35"

		if signer.VerifyNotification(n) {
			t.Fatal("expected tampered txnid to fail verification")
		}
	})

	t.Run("rejects a tampered status", func(t *testing.T) {
		n := validNotification(signer)
		n.Status = "failure"

		if signer.VerifyNotification(n) {
			t.Fatal("expected tampered status to fail verification")
		}
	})

	t.Run("rejects a single character change in the hash", func(t *testing.T) {
		n := validNotification(signer)
		replacement := "0"
		if strings.HasPrefix(n.Hash, "0") {
			replacement = "1"
		}
		n.Hash = replacement + n.Hash[1:]

		if signer.VerifyNotification(n) {
			t.Fatal("expected altered hash to fail verification")
		}
	})

	t.Run("rejects notifications missing required fields", func(t *testing.T) {
		for _, tc := range []struct {
			name   string
			mutate func(*payu.Notification)
		}{
			{"empty txnid", func(n *payu.Notification) { n.TxnID = "" }},
			{"empty status", func(n *payu.Notification) { n.Status = "" }},
			{"empty hash", func(n *payu.Notification) { n.Hash = "" }},
		} {
			t.Run(tc.name, func(t *testing.T) {
				n := validNotification(signer)
				tc.mutate(&n)

				if signer.VerifyNotification(n) {
					t.Fatal("expected incomplete notification to fail verification")
				}
			})
		}
	})

	t.Run("rejects everything when unconfigured", func(t *testing.T) {
		unconfigured := payu.NewSigner("", "")
		n := validNotification(signer)

		if unconfigured.VerifyNotification(n) {
			t.Fatal("expected unconfigured signer to reject")
		}
	})
}

func TestResponseHashNormalization(t *testing.T) {
	signer := payu.NewSigner("merchant-key", "merchant-salt")

	t.Run("email case and surrounding whitespace do not change the hash", func(t *testing.T) {
		base := validNotification(signer)
		variant := base
		variant.Email = "  ASHA@Example.COM "

		if signer.ResponseHash(base) != signer.ResponseHash(variant) {
			t.Error("expected email normalization before hashing")
		}
	})

	t.Run("firstname surrounding whitespace does not change the hash", func(t *testing.T) {
		base := validNotification(signer)
		variant := base
		variant.FirstName = "  Asha  "

		if signer.ResponseHash(base) != signer.ResponseHash(variant) {
			t.Error("expected firstname trimming before hashing")
		}
	})

	t.Run("amount is hashed exactly as received", func(t *testing.T) {
		base := validNotification(signer)
		variant := base
		variant.Amount = "499.0"

		if signer.ResponseHash(base) == signer.ResponseHash(variant) {
			t.Error("expected differing amount strings to produce different hashes")
		}
	})
}

func TestPaymentHash(t *testing.T) {
	signer := payu.NewSigner("merchant-key", "merchant-salt")

	t.Run("is deterministic", func(t *testing.T) {
		a := signer.PaymentHash("tx_1", "10.00", "Order", "Asha", "asha@example.com")
		b := signer.PaymentHash("tx_1", "10.00", "Order", "Asha", "asha@example.com")
		if a != b {
			t.Error("expected identical inputs to hash identically")
		}
	})

	t.Run("is a 128 character hex digest", func(t *testing.T) {
		h := signer.PaymentHash("tx_1", "10.00", "Order", "Asha", "asha@example.com")
		if len(h) != 128 {
			t.Errorf("expected 128 hex characters, got %d", len(h))
		}
	})

	t.Run("every field contributes to the digest", func(t *testing.T) {
		base := signer.PaymentHash("tx_1", "10.00", "Order", "Asha", "asha@example.com")
		for name, h := range map[string]string{
			"txnid":       signer.PaymentHash("tx_2", "10.00", "Order", "Asha", "asha@example.com"),
			"amount":      signer.PaymentHash("tx_1", "10.01", "Order", "Asha", "asha@example.com"),
			"productinfo": signer.PaymentHash("tx_1", "10.00", "Order 2", "Asha", "asha@example.com"),
			"firstname":   signer.PaymentHash("tx_1", "10.00", "Order", "Aisha", "asha@example.com"),
			"email":       signer.PaymentHash("tx_1", "10.00", "Order", "Asha", "aisha@example.com"),
		} {
			if h == base {
				t.Errorf("expected %s to contribute to the hash", name)
			}
		}
	})
}
