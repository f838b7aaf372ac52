package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct {
	orientation string
}

// NewPDFExporter constructs a landscape PDF exporter, which fits a week grid.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{orientation: "L"}
}

// NewPortraitPDFExporter constructs a portrait PDF exporter for long lists.
func NewPortraitPDFExporter() *PDFExporter {
	return &PDFExporter{orientation: "P"}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	orientation := e.orientation
	if orientation == "" {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(data.Headers))

	pdf.SetFont("Arial", "B", 10)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 10, fitCell(pdf, row[header], colWidth), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fitCell shortens value until it fits inside a cell of the given width.
func fitCell(pdf *gofpdf.Fpdf, value string, width float64) string {
	const padding = 2
	if pdf.GetStringWidth(value) <= width-padding {
		return value
	}
	runes := []rune(value)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"..") > width-padding {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + ".."
}
