package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Reader yields export rows keyed by their (normalized) header.
type Reader struct {
	csv    *csv.Reader
	header []string
}

// NewReader reads the header line of an export. A UTF-8 or UTF-16 byte order
// mark is honored and stripped; header names are NFC-normalized and trimmed
// so decomposed Hangul from some exporters still matches the schema labels.
func NewReader(r io.Reader) (*Reader, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty export: no header line")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		header[i] = normalizeHeader(h)
	}
	return &Reader{csv: cr, header: header}, nil
}

// Header returns the normalized header names.
func (r *Reader) Header() []string {
	return r.header
}

// Next returns the next non-empty row, io.EOF at the end, or a
// *csv.ParseError for a malformed line (reading may continue after it).
// Missing trailing fields read as empty; surplus fields are dropped.
func (r *Reader) Next() (map[string]string, error) {
	for {
		rec, err := r.csv.Read()
		if err != nil {
			return nil, err
		}
		if blank(rec) {
			continue
		}
		row := make(map[string]string, len(r.header))
		for i, h := range r.header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		return row, nil
	}
}

// Line is the input line of the last record read.
func (r *Reader) Line() int {
	line, _ := r.csv.FieldPos(0)
	return line
}

func normalizeHeader(h string) string {
	return strings.TrimSpace(norm.NFC.String(h))
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
