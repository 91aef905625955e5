// Package voucher holds the voucher record, form validation and list query
// parameters shared by the backend client and the web layer.
package voucher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and form format for expiry dates.
const DateLayout = "2006-01-02"

// MaxCodeLength bounds voucher codes.
const MaxCodeLength = 64

var (
	minDiscount = decimal.Zero
	maxDiscount = decimal.NewFromInt(100)
)

// Voucher is a voucher as returned by the backend.
type Voucher struct {
	ID              string          `json:"id"`
	VoucherCode     string          `json:"voucher_code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	ExpiryDate      string          `json:"expiry_date"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

// Expiry parses ExpiryDate. Timestamps are accepted and truncated to the day.
func (v Voucher) Expiry() (time.Time, bool) {
	s := v.ExpiryDate
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	return t, err == nil
}

// Expired reports whether the voucher expired before now's date.
func (v Voucher) Expired(now time.Time) bool {
	exp, ok := v.Expiry()
	if !ok {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return exp.Before(today)
}

// FormInput is the raw create/edit form.
type FormInput struct {
	VoucherCode     string
	DiscountPercent string
	ExpiryDate      string
}

// FromVoucher fills a form for editing an existing voucher.
func FromVoucher(v Voucher) FormInput {
	exp := v.ExpiryDate
	if len(exp) > len(DateLayout) {
		exp = exp[:len(DateLayout)]
	}
	return FormInput{
		VoucherCode:     v.VoucherCode,
		DiscountPercent: v.DiscountPercent.String(),
		ExpiryDate:      exp,
	}
}

// Payload is the validated body sent to the backend.
type Payload struct {
	VoucherCode     string      `json:"voucher_code"`
	DiscountPercent json.Number `json:"discount_percent"`
	ExpiryDate      string      `json:"expiry_date"`
}

// ValidationError names the first invalid form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the form and returns the payload to send.
// Only the first problem is reported, in field order.
func (in FormInput) Validate() (Payload, error) {
	code, err := ValidateCode(in.VoucherCode)
	if err != nil {
		return Payload{}, err
	}
	discount, err := ValidateDiscount(in.DiscountPercent)
	if err != nil {
		return Payload{}, err
	}
	exp, err := ValidateExpiry(in.ExpiryDate)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		VoucherCode:     code,
		DiscountPercent: json.Number(discount.String()),
		ExpiryDate:      exp,
	}, nil
}

// ValidateCode trims and checks a voucher code.
func ValidateCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	switch {
	case code == "":
		return "", invalid("voucher_code", "Voucher code is required")
	case len(code) > MaxCodeLength:
		return "", invalid("voucher_code", "Voucher code must be at most %d characters", MaxCodeLength)
	case strings.ContainsAny(code, ",\r\n"):
		return "", invalid("voucher_code", "Voucher code must not contain commas or line breaks")
	}
	return code, nil
}

// ValidateDiscount parses a discount percentage in (0, 100].
func ValidateDiscount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, invalid("discount_percent", "Discount is required")
	}
	discount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid("discount_percent", "Discount must be a number")
	}
	if discount.LessThanOrEqual(minDiscount) || discount.GreaterThan(maxDiscount) {
		return decimal.Zero, invalid("discount_percent", "Discount must be greater than 0 and at most 100")
	}
	return discount, nil
}

// ValidateExpiry checks a YYYY-MM-DD expiry date.
func ValidateExpiry(raw string) (string, error) {
	exp := strings.TrimSpace(raw)
	if exp == "" {
		return "", invalid("expiry_date", "Expiry date is required")
	}
	if _, err := time.Parse(DateLayout, exp); err != nil {
		return "", invalid("expiry_date", "Expiry date must be a valid date (YYYY-MM-DD)")
	}
	return exp, nil
}
