package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet of a workbook export.
type Sheet struct {
	Name string
	Data Dataset
}

// XLSXExporter renders datasets into an Excel workbook, one sheet each.
type XLSXExporter struct {
	columnWidth float64
}

// NewXLSXExporter builds an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{columnWidth: 22}
}

// Render writes the sheets in order; the first one becomes active.
func (e *XLSXExporter) Render(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, sheet := range sheets {
		if err := sheet.Data.validate(); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return nil, fmt.Errorf("rename sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", sheet.Name, err)
		}
		if err := e.writeSheet(f, sheet, header); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *XLSXExporter) writeSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	headers := make([]interface{}, len(sheet.Data.Headers))
	for i, h := range sheet.Data.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &headers); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet.Name, 1, 1, headerStyle); err != nil {
		return err
	}

	for n, row := range sheet.Data.Rows {
		record := make([]interface{}, len(sheet.Data.Headers))
		for i, h := range sheet.Data.Headers {
			record[i] = row[h]
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet.Name, cell, &record); err != nil {
			return err
		}
	}

	last, err := excelize.ColumnNumberToName(len(sheet.Data.Headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet.Name, "A", last, e.columnWidth); err != nil {
		return err
	}
	return f.SetPanes(sheet.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
