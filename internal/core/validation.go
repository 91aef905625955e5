package core

// validation.go flags preview rows the backend is likely to refuse.
//
// The checks are advisory: they run only over the previewed rows, they never
// block a submission, and the backend stays the authority on what gets
// ingested. Every problem in a row is reported, not just the first one.

import "github.com/JonMunkholm/voucherdash/internal/voucher"

// RowIssue is one suspicious cell in a preview row.
type RowIssue struct {
	LineNumber int    `json:"line_number"`
	Field      Field  `json:"field"`
	Value      string `json:"value"`
	Message    string `json:"message"`
}

// fieldCheck validates a single raw cell.
type fieldCheck func(raw string) error

var fieldChecks = []struct {
	field Field
	check fieldCheck
}{
	{FieldVoucherCode, func(raw string) error { _, err := voucher.ValidateCode(raw); return err }},
	{FieldDiscountPercent, func(raw string) error { _, err := voucher.ValidateDiscount(raw); return err }},
	{FieldExpiryDate, func(raw string) error { _, err := voucher.ValidateExpiry(raw); return err }},
}

// CheckRow returns every issue found in row, in field order.
func CheckRow(row PreviewRow) []RowIssue {
	var issues []RowIssue
	for _, fc := range fieldChecks {
		value := row.Value(fc.field)
		err := fc.check(value)
		if err == nil {
			continue
		}
		issues = append(issues, RowIssue{
			LineNumber: row.LineNumber,
			Field:      fc.field,
			Value:      value,
			Message:    err.Error(),
		})
	}
	return issues
}

// CheckPreview runs CheckRow over rows.
func CheckPreview(rows []PreviewRow) []RowIssue {
	var issues []RowIssue
	for _, row := range rows {
		issues = append(issues, CheckRow(row)...)
	}
	return issues
}

// IssuesByLine groups issues by line number.
func IssuesByLine(issues []RowIssue) map[int][]RowIssue {
	if len(issues) == 0 {
		return nil
	}
	out := make(map[int][]RowIssue)
	for _, is := range issues {
		out[is.LineNumber] = append(out[is.LineNumber], is)
	}
	return out
}
