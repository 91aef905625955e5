package core

import (
	"errors"
	"strings"
)

// ErrEmptyFile is returned when a file has no non-blank lines.
var ErrEmptyFile = errors.New("empty file")

// SplitLines breaks file text into logical rows.
// CRLF, LF and lone CR all end a line. Lines that are blank after trimming
// are dropped; order is preserved. The first element is the header line.
func SplitLines(text string) ([]string, error) {
	var lines []string

	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\n' && c != '\r' {
			continue
		}
		lines = appendLine(lines, text[start:i])
		if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
			i++
		}
		start = i + 1
	}
	lines = appendLine(lines, text[start:])

	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}
	return lines, nil
}

func appendLine(lines []string, line string) []string {
	if strings.TrimSpace(line) == "" {
		return lines
	}
	return append(lines, line)
}

// splitCells splits a line on commas and trims each cell.
// Quoted fields are not supported: the import dialect is one record per line
// with no escaping.
func splitCells(line string) []string {
	cells := strings.Split(line, ",")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}
