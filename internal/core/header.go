package core

import (
	"fmt"
	"strings"
)

// HeaderResolution is the outcome of mapping a header line onto the
// required fields.
type HeaderResolution struct {
	// Headers are the trimmed, non-empty header tokens in file order.
	Headers []string
	// Index holds the first position of each required field that was found.
	Index HeaderIndexMap
	// Missing lists required fields with no column, in RequiredFields order.
	Missing []Field
	// Duplicates lists required fields that appeared more than once.
	// Only the first occurrence is used.
	Duplicates []Field
}

// Valid reports whether every required field was found.
func (h HeaderResolution) Valid() bool {
	return len(h.Missing) == 0
}

// Err returns a *MissingHeadersError when the header is invalid, nil otherwise.
func (h HeaderResolution) Err() error {
	if h.Valid() {
		return nil
	}
	return &MissingHeadersError{Missing: h.Missing, Found: h.Headers}
}

// MissingHeadersError reports required columns that the header lacks.
type MissingHeadersError struct {
	Missing []Field
	Found   []string
}

func (e *MissingHeadersError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("Missing required header(s): %s. Found: \"%s\".",
		strings.Join(names, ", "), strings.Join(e.Found, ", "))
}

// ResolveHeader maps the header line onto the required fields.
//
// Tokens are compared case-insensitively and may appear in any order.
// Unrelated columns are ignored. Positions count every comma-separated
// column, blank ones included, so they line up with data rows. The scan is
// a single left-to-right pass, so when a field is repeated the first index
// wins.
func ResolveHeader(line string) HeaderResolution {
	res := HeaderResolution{Index: make(HeaderIndexMap, len(RequiredFields))}

	for pos, raw := range strings.Split(line, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		res.Headers = append(res.Headers, tok)

		f, ok := requiredField(tok)
		if !ok {
			continue
		}
		if _, seen := res.Index[f]; seen {
			res.Duplicates = appendUnique(res.Duplicates, f)
			continue
		}
		res.Index[f] = pos
	}

	for _, f := range RequiredFields {
		if _, ok := res.Index[f]; !ok {
			res.Missing = append(res.Missing, f)
		}
	}

	return res
}

func appendUnique(fields []Field, f Field) []Field {
	for _, existing := range fields {
		if existing == f {
			return fields
		}
	}
	return append(fields, f)
}
