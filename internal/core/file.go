package core

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrNotCSV is returned for files without a .csv extension.
	ErrNotCSV = errors.New("not a csv file")

	// ErrUnreadableFile is returned when the file text cannot be decoded.
	ErrUnreadableFile = errors.New("encoding error: file is not valid text")

	// ErrNoFile is returned when no file was selected.
	ErrNoFile = errors.New("no file provided")
)

// CheckFileName rejects files that do not carry a .csv extension.
// The check is case-insensitive and runs before any parsing.
func CheckFileName(name string) error {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return ErrNotCSV
	}
	return nil
}

// DecodeText converts file bytes to text.
//
// A UTF-8 or UTF-16 byte order mark selects the encoding and is stripped.
// Without a BOM the data must already be valid UTF-8.
func DecodeText(data []byte) (string, error) {
	if !hasUTF16BOM(data) && !utf8.Valid(data) {
		return "", ErrUnreadableFile
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), data)
	if err != nil {
		return "", errors.Join(ErrUnreadableFile, err)
	}
	if !utf8.Valid(out) {
		return "", ErrUnreadableFile
	}
	return string(out), nil
}

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xFE, 0xFF}) || bytes.HasPrefix(data, []byte{0xFF, 0xFE})
}

// Inspection is the synchronous verdict on a selected file.
//
// Exactly one of two shapes is produced: Err is set (file-shape problem,
// no header verdict and no preview), or Header and Preview are populated.
type Inspection struct {
	FileName string
	Err      error
	Header   HeaderResolution
	Preview  []PreviewRow
	// DataRows counts every non-blank line after the header, not only the
	// previewed ones.
	DataRows int
}

// HeaderValid reports whether the file can be submitted.
func (in Inspection) HeaderValid() bool {
	return in.Err == nil && in.Header.Valid()
}

// Problem returns the error to show next to the file picker, if any.
// It is either the file-shape error or a *MissingHeadersError.
func (in Inspection) Problem() error {
	if in.Err != nil {
		return in.Err
	}
	return in.Header.Err()
}

// Inspect runs the extension check, decoding, line splitting, header
// resolution and preview projection over a selected file. It is pure:
// inspecting the same file twice gives the same result.
func Inspect(f RawFile) Inspection {
	in := Inspection{FileName: f.Name}

	if err := CheckFileName(f.Name); err != nil {
		in.Err = err
		return in
	}

	text, err := DecodeText(f.Data)
	if err != nil {
		in.Err = err
		return in
	}

	lines, err := SplitLines(text)
	if err != nil {
		in.Err = err
		return in
	}

	in.Header = ResolveHeader(lines[0])
	in.DataRows = len(lines) - 1
	in.Preview = ProjectPreview(lines[1:], in.Header.Index)
	return in
}
