package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// Dataset defines tabular export content. Rows are keyed by header; a
// missing key renders as an empty cell.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

var errNoHeaders = errors.New("export requires at least one header")

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return errNoHeaders
	}
	seen := make(map[string]struct{}, len(d.Headers))
	for _, header := range d.Headers {
		if _, dup := seen[header]; dup {
			return fmt.Errorf("duplicate header %q", header)
		}
		seen[header] = struct{}{}
	}
	return nil
}

// CSVExporter renders datasets as RFC 4180 CSV.
type CSVExporter struct {
	comma   rune
	useCRLF bool
}

// CSVOption tweaks the exporter output.
type CSVOption func(*CSVExporter)

// WithDelimiter switches the field separator, e.g. ';' for locales that
// use a decimal comma.
func WithDelimiter(r rune) CSVOption {
	return func(e *CSVExporter) { e.comma = r }
}

// WithCRLF terminates records with \r\n.
func WithCRLF() CSVOption {
	return func(e *CSVExporter) { e.useCRLF = true }
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{comma: ','}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Write streams the dataset to w.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if err := data.validate(); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	writer.Comma = e.comma
	writer.UseCRLF = e.useCRLF

	if err := writer.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", n+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
