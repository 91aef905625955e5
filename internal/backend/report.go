package backend

import (
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/voucherdash/internal/core"
)

// Wire shape of the ingestion reply. Pointers distinguish absent fields
// from zero values.
type ingestionBody struct {
	Success *bool          `json:"success"`
	Message *string        `json:"message"`
	Data    *ingestionData `json:"data"`
}

type ingestionData struct {
	SuccessCount *int             `json:"success_count"`
	FailedCount  *int             `json:"failed_count"`
	FailedRows   *[]*failedRowDTO `json:"failed_rows"`
}

type failedRowDTO struct {
	RowNumber   *int    `json:"row_number"`
	VoucherCode *string `json:"voucher_code"`
	Reason      *string `json:"reason"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// ParseIngestionReport validates a 2xx ingestion reply.
//
// Every field must be present with the right type; counts must be
// non-negative integers. Anything else is ErrMalformedResponse: a malformed
// success body is never trusted.
func ParseIngestionReport(body []byte) (*core.IngestionReport, error) {
	var b ingestionBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, malformed("decode body: %v", err)
	}

	switch {
	case b.Success == nil:
		return nil, malformed("success is missing")
	case b.Message == nil:
		return nil, malformed("message is missing")
	case b.Data == nil:
		return nil, malformed("data is missing")
	}

	d := b.Data
	switch {
	case d.SuccessCount == nil:
		return nil, malformed("data.success_count is missing")
	case d.FailedCount == nil:
		return nil, malformed("data.failed_count is missing")
	case d.FailedRows == nil:
		return nil, malformed("data.failed_rows is missing")
	case *d.SuccessCount < 0:
		return nil, malformed("data.success_count is negative")
	case *d.FailedCount < 0:
		return nil, malformed("data.failed_count is negative")
	}

	rows := make([]core.FailedRow, 0, len(*d.FailedRows))
	for i, r := range *d.FailedRows {
		if r == nil || r.RowNumber == nil || r.VoucherCode == nil || r.Reason == nil {
			return nil, malformed("data.failed_rows[%d] is incomplete", i)
		}
		rows = append(rows, core.FailedRow{
			RowNumber:   *r.RowNumber,
			VoucherCode: *r.VoucherCode,
			Reason:      *r.Reason,
		})
	}

	return &core.IngestionReport{
		Success: *b.Success,
		Message: *b.Message,
		Summary: core.IngestionSummary{
			SuccessCount: *d.SuccessCount,
			FailedCount:  *d.FailedCount,
			FailedRows:   rows,
		},
	}, nil
}
