package payu

import (
	"errors"
	"strings"
)

var (
	// ErrNotConfigured is returned when the merchant key or salt is missing.
	ErrNotConfigured = errors.New("merchant key or salt not configured")
	// ErrInvalidAmount is returned for non-positive payment amounts.
	ErrInvalidAmount = errors.New("payment amount must be positive")
)

var paymentEndpoints = map[string]string{
	"test": "https://test.payu.in/_payment",
	"live": "https://secure.payu.in/_payment",
}

// Config carries the provider settings an InitiationBuilder needs.
type Config struct {
	MerchantKey  string
	MerchantSalt string
	Mode         string
	SuccessURL   string
	FailureURL   string
}

// InitiationBuilder constructs provider-ready hosted checkout requests.
// It only builds the field set; submitting it is the client's concern.
type InitiationBuilder struct {
	cfg    Config
	signer *Signer
}

func NewInitiationBuilder(cfg Config) *InitiationBuilder {
	return &InitiationBuilder{
		cfg:    cfg,
		signer: NewSigner(cfg.MerchantKey, cfg.MerchantSalt),
	}
}

// InitiationRequest describes the order a payment should be initiated for.
// Amount is in cents, computed server-side from catalog prices.
type InitiationRequest struct {
	AmountCents int64
	ProductInfo string
	FirstName   string
	Email       string
	Phone       string
}

// Initiation is the complete form the client submits to the provider.
type Initiation struct {
	TxnID      string
	Fields     map[string]string
	PaymentURL string
}

// Build sanitizes the customer fields, assigns a fresh transaction id, and
// signs the request with the forward hash.
func (b *InitiationBuilder) Build(req InitiationRequest) (*Initiation, error) {
	if !b.signer.Configured() {
		return nil, ErrNotConfigured
	}
	if req.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	txnID := NewTxnID()
	amount := FormatAmount(req.AmountCents)

	productInfo := SanitizeProductInfo(req.ProductInfo)
	if productInfo == "" {
		productInfo = "Order_" + strings.ReplaceAll(txnID, "-", "")
	}

	firstName := SanitizeFirstName(req.FirstName)
	email := NormalizeEmail(req.Email)
	phone := SanitizePhone(req.Phone)

	fields := map[string]string{
		"key":              b.cfg.MerchantKey,
		"txnid":            txnID,
		"amount":           amount,
		"productinfo":      productInfo,
		"firstname":        firstName,
		"email":            email,
		"phone":            phone,
		"surl":             b.cfg.SuccessURL,
		"furl":             b.cfg.FailureURL,
		"service_provider": "payu_paisa",
		"lastname":         "",
		"address1":         "",
		"address2":         "",
		"city":             "",
		"state":            "",
		"country":          "",
		"zipcode":          "",
		"udf1":             "",
		"udf2":             "",
		"udf3":             "",
		"udf4":             "",
		"udf5":             "",
		"pg":               "",
	}
	fields["hash"] = b.signer.PaymentHash(txnID, amount, productInfo, firstName, email)

	return &Initiation{
		TxnID:      txnID,
		Fields:     fields,
		PaymentURL: paymentEndpoints[b.cfg.Mode],
	}, nil
}
