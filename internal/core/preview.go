package core

// ProjectPreview builds the advisory preview shown before upload.
//
// dataLines are the file's lines after the header. At most MaxPreviewRows
// rows are produced. A row that is too short for a resolved column yields an
// empty value for that field instead of failing. Line numbers match what a
// spreadsheet shows: the header is line 1, the first data row line 2.
func ProjectPreview(dataLines []string, index HeaderIndexMap) []PreviewRow {
	n := len(dataLines)
	if n > MaxPreviewRows {
		n = MaxPreviewRows
	}

	rows := make([]PreviewRow, 0, n)
	for i, line := range dataLines[:n] {
		cells := splitCells(line)
		rows = append(rows, PreviewRow{
			LineNumber:      i + 2,
			VoucherCode:     cellFor(cells, index, FieldVoucherCode),
			DiscountPercent: cellFor(cells, index, FieldDiscountPercent),
			ExpiryDate:      cellFor(cells, index, FieldExpiryDate),
		})
	}
	return rows
}

// cellFor returns the cell for a field, or "" when the field is unresolved
// or the row has no such column.
func cellFor(cells []string, index HeaderIndexMap, f Field) string {
	pos, ok := index[f]
	if !ok || pos < 0 || pos >= len(cells) {
		return ""
	}
	return cells[pos]
}
