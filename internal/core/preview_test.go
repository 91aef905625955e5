package core

import (
	"fmt"
	"strings"
	"testing"
)

func TestProjectPreview(t *testing.T) {
	index := ResolveHeader("voucher_code,discount_percent,expiry_date").Index

	t.Run("values and line numbers", func(t *testing.T) {
		rows := ProjectPreview([]string{"A1, 10 ,2025-12-31", "B2,20,2026-01-31"}, index)
		if len(rows) != 2 {
			t.Fatalf("len(rows) = %d, want 2", len(rows))
		}
		want := PreviewRow{LineNumber: 2, VoucherCode: "A1", DiscountPercent: "10", ExpiryDate: "2025-12-31"}
		if rows[0] != want {
			t.Errorf("rows[0] = %+v, want %+v", rows[0], want)
		}
		if rows[1].LineNumber != 3 {
			t.Errorf("rows[1].LineNumber = %d, want 3", rows[1].LineNumber)
		}
	})

	t.Run("caps at max preview rows", func(t *testing.T) {
		var lines []string
		for i := 0; i < 25; i++ {
			lines = append(lines, fmt.Sprintf("C%d,5,2025-01-01", i))
		}
		rows := ProjectPreview(lines, index)
		if len(rows) != MaxPreviewRows {
			t.Fatalf("len(rows) = %d, want %d", len(rows), MaxPreviewRows)
		}
		if last := rows[len(rows)-1]; last.LineNumber != MaxPreviewRows+1 {
			t.Errorf("last.LineNumber = %d, want %d", last.LineNumber, MaxPreviewRows+1)
		}
	})

	t.Run("short row yields empty values", func(t *testing.T) {
		rows := ProjectPreview([]string{"ONLY"}, index)
		want := PreviewRow{LineNumber: 2, VoucherCode: "ONLY"}
		if rows[0] != want {
			t.Errorf("rows[0] = %+v, want %+v", rows[0], want)
		}
	})

	t.Run("unresolved field yields empty value", func(t *testing.T) {
		partial := ResolveHeader("voucher_code,expiry_date").Index
		rows := ProjectPreview([]string{"X,2025-02-02"}, partial)
		if rows[0].DiscountPercent != "" {
			t.Errorf("DiscountPercent = %q, want empty", rows[0].DiscountPercent)
		}
		if rows[0].ExpiryDate != "2025-02-02" {
			t.Errorf("ExpiryDate = %q, want 2025-02-02", rows[0].ExpiryDate)
		}
	})

	t.Run("quoted comma splits naively", func(t *testing.T) {
		rows := ProjectPreview([]string{`"A,1",10,2025-12-31`}, index)
		if rows[0].VoucherCode != `"A` || rows[0].DiscountPercent != `1"` {
			t.Errorf("rows[0] = %+v, want naive split", rows[0])
		}
	})

	t.Run("no data rows", func(t *testing.T) {
		rows := ProjectPreview(nil, index)
		if rows == nil || len(rows) != 0 {
			t.Errorf("rows = %v, want empty non-nil slice", rows)
		}
	})
}

func TestProjectPreview_Reordered(t *testing.T) {
	index := ResolveHeader("expiry_date,VOUCHER_CODE,Discount_Percent").Index
	rows := ProjectPreview([]string{"2025-12-31,ABC,15"}, index)

	got := []string{rows[0].Value(FieldVoucherCode), rows[0].Value(FieldDiscountPercent), rows[0].Value(FieldExpiryDate)}
	if strings.Join(got, "|") != "ABC|15|2025-12-31" {
		t.Errorf("values = %q", got)
	}
}
