// Package core provides the business logic for the voucher CSV import flow.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"strings"
	"time"
)

// Field is one of the semantic columns every import file must carry.
type Field string

const (
	FieldVoucherCode     Field = "voucher_code"
	FieldDiscountPercent Field = "discount_percent"
	FieldExpiryDate      Field = "expiry_date"
)

// RequiredFields lists the import columns in display order.
var RequiredFields = []Field{
	FieldVoucherCode,
	FieldDiscountPercent,
	FieldExpiryDate,
}

// requiredField reports whether a case-folded header token names a required field.
func requiredField(token string) (Field, bool) {
	f := Field(strings.ToLower(token))
	for _, rf := range RequiredFields {
		if f == rf {
			return f, true
		}
	}
	return "", false
}

// MaxPreviewRows caps the number of data rows shown before submission.
const MaxPreviewRows = 10

// RawFile is the file exactly as the user selected it.
// It is sent unmodified on submission; the preview is derived from it.
type RawFile struct {
	Name string
	Data []byte
}

// Size returns the file size in bytes.
func (f RawFile) Size() int64 {
	return int64(len(f.Data))
}

// HeaderIndexMap maps each required field to the zero-based column where it
// was first found. Fields absent from the header have no entry.
type HeaderIndexMap map[Field]int

// Complete reports whether all required fields were resolved.
func (m HeaderIndexMap) Complete() bool {
	for _, f := range RequiredFields {
		if _, ok := m[f]; !ok {
			return false
		}
	}
	return true
}

// PreviewRow is one data row as it will be shown before upload.
// Values are raw strings; typing is left to the backend.
type PreviewRow struct {
	LineNumber      int    `json:"lineNumber"`
	VoucherCode     string `json:"voucher_code"`
	DiscountPercent string `json:"discount_percent"`
	ExpiryDate      string `json:"expiry_date"`
}

// Value returns the preview value for a field.
func (r PreviewRow) Value(f Field) string {
	switch f {
	case FieldVoucherCode:
		return r.VoucherCode
	case FieldDiscountPercent:
		return r.DiscountPercent
	case FieldExpiryDate:
		return r.ExpiryDate
	default:
		return ""
	}
}

// FailedRow is a row the backend refused during ingestion.
type FailedRow struct {
	RowNumber   int    `json:"row_number"`
	VoucherCode string `json:"voucher_code"`
	Reason      string `json:"reason"`
}

// IngestionSummary is the backend's row-level outcome for one import.
type IngestionSummary struct {
	SuccessCount int         `json:"success_count"`
	FailedCount  int         `json:"failed_count"`
	FailedRows   []FailedRow `json:"failed_rows"`
}

// AllSucceeded is true only when a summary exists and reports no failures.
func (s *IngestionSummary) AllSucceeded() bool {
	return s != nil && s.FailedCount == 0
}

// ImportResult is what the caller renders after a submission attempt.
// Summary is nil when the attempt never produced a trustworthy report
// (authorization, transport or response-shape failure).
type ImportResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Summary *IngestionSummary `json:"summary,omitempty"`
}

// ImportAttempt is the history record of one submission.
type ImportAttempt struct {
	ID           string        `json:"id"`
	FlowID       string        `json:"flow_id"`
	FileName     string        `json:"file_name"`
	FileSize     int64         `json:"file_size"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	Duration     time.Duration `json:"duration_ns"`
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
	FailedRows   []FailedRow   `json:"failed_rows"`
	IPAddress    string        `json:"ip_address,omitempty"`
	UserAgent    string        `json:"user_agent,omitempty"`
}
