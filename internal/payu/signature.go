package payu

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// The provider's hash sequences carry a fixed run of empty placeholder fields
// (udf1..udf5 plus reserved slots) between the identity fields and the salt.
const emptyPlaceholderFields = 10

// StatusSuccess is the provider's status value for a completed payment. Any
// other status ("failure", "pending") must not confirm an order.
const StatusSuccess = "success"

// Signer computes and verifies the provider's SHA-512 request signatures.
// The merchant key and salt are injected at construction and never read
// from the environment here.
type Signer struct {
	key  string
	salt string
}

func NewSigner(merchantKey, merchantSalt string) *Signer {
	return &Signer{key: merchantKey, salt: merchantSalt}
}

// Configured reports whether both merchant credentials are present.
func (s *Signer) Configured() bool {
	return s.key != "" && s.salt != ""
}

// PaymentHash computes the forward hash used when initiating a payment:
// key|txnid|amount|productinfo|firstname|email|<placeholders>|salt.
// Callers must pass already-sanitized fields; the amount is the fixed
// 2-decimal string submitted to the provider.
func (s *Signer) PaymentHash(txnID, amount, productInfo, firstName, email string) string {
	fields := make([]string, 0, 7+emptyPlaceholderFields)
	fields = append(fields, s.key, txnID, amount, productInfo, firstName, email)
	for i := 0; i < emptyPlaceholderFields; i++ {
		fields = append(fields, "")
	}
	fields = append(fields, s.salt)

	return hashFields(fields)
}

// Notification is the field set a provider callback asserts about a
// transaction, together with the signature it supplied.
type Notification struct {
	Key         string
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
	Status      string
	Hash        string
}

// VerifyNotification recomputes the reverse hash and compares it against the
// supplied signature. Malformed or incomplete notifications are reported as
// invalid, never as an error.
func (s *Signer) VerifyNotification(n Notification) bool {
	if !s.Configured() {
		return false
	}
	if n.TxnID == "" || n.Status == "" || n.Hash == "" {
		return false
	}

	expected := s.ResponseHash(n)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.Hash)) == 1
}

// ResponseHash computes the reverse hash
// salt|status|<placeholders>|email|firstname|productinfo|amount|txnid|key.
// Email is lower-cased and trimmed and the first name trimmed before hashing,
// matching the normalization applied on the initiation side; the amount is
// hashed exactly as received.
func (s *Signer) ResponseHash(n Notification) string {
	fields := make([]string, 0, 8+emptyPlaceholderFields)
	fields = append(fields, s.salt, n.Status)
	for i := 0; i < emptyPlaceholderFields; i++ {
		fields = append(fields, "")
	}
	fields = append(fields,
		NormalizeEmail(n.Email),
		strings.TrimSpace(n.FirstName),
		n.ProductInfo,
		n.Amount,
		n.TxnID,
		n.Key,
	)

	return hashFields(fields)
}

func hashFields(fields []string) string {
	sum := sha512.Sum512([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}
