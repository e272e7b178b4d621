package payu

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxProductInfoLen = 100
	maxFirstNameLen   = 60
	maxPhoneLen       = 10
)

// NewTxnID returns a fresh transaction identifier. The timestamp prefix keeps
// identifiers roughly sortable; the uuid suffix guards against collisions
// within the same millisecond.
func NewTxnID() string {
	return fmt.Sprintf("tx_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// FormatAmount renders integer cents as the fixed 2-decimal string the
// provider expects.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// NormalizeEmail lower-cases and trims an email address. Initiation and
// verification must apply the same normalization or signatures will
// spuriously mismatch.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SanitizeFirstName keeps letters, digits and spaces, trimmed to the
// provider's length limit.
func SanitizeFirstName(name string) string {
	return truncate(strings.TrimSpace(keepRunes(name, false)), maxFirstNameLen)
}

// SanitizeProductInfo keeps letters, digits, spaces, hyphens and underscores.
func SanitizeProductInfo(info string) string {
	return truncate(strings.TrimSpace(keepRunes(info, true)), maxProductInfoLen)
}

// SanitizePhone strips everything but digits.
func SanitizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return truncate(b.String(), maxPhoneLen)
}

func keepRunes(s string, allowSeparators bool) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case allowSeparators && (r == '-' || r == '_'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
