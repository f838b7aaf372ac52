package service

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(sheets ...export.Sheet) ([]byte, error)
}

// ExportService renders one class timetable into a downloadable file.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	xlsx   xlsxRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the pkg/export defaults.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, xlsx: xlsx, logger: logger}
}

// Render produces the CSV slot list, the PDF week grid, or a workbook
// holding both for a class schedule.
func (s *ExportService) Render(className string, schedule timetable.Schedule, format string) (*dto.ExportedFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	base := sanitizeFilename(className)

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(buildSlotDataset(schedule))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &dto.ExportedFile{Filename: base + ".csv", ContentType: "text/csv", Content: content}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(buildGridDataset(schedule), fmt.Sprintf("Timetable %s", className))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &dto.ExportedFile{Filename: base + ".pdf", ContentType: "application/pdf", Content: content}, nil
	case ExportFormatXLSX:
		content, err := s.xlsx.Render(
			export.Sheet{Name: "Week", Data: buildGridDataset(schedule)},
			export.Sheet{Name: "Slots", Data: buildSlotDataset(schedule)},
		)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render xlsx export")
		}
		return &dto.ExportedFile{Filename: base + ".xlsx", ContentType: xlsxContentType, Content: content}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

var slotHeaders = []string{"Day", "Period", "Subject", "Code", "Teacher", "Room", "Lab"}

// buildSlotDataset lists every slot of the week, one row per period.
func buildSlotDataset(schedule timetable.Schedule) export.Dataset {
	rows := make([]map[string]string, 0)
	for _, day := range schedule {
		for _, slot := range day.Slots {
			lab := ""
			if slot.IsLab {
				lab = "yes"
			}
			rows = append(rows, map[string]string{
				"Day":     day.Day,
				"Period":  strconv.Itoa(slot.Period),
				"Subject": deref(slot.Subject),
				"Code":    deref(slot.SubjectCode),
				"Teacher": deref(slot.Teacher),
				"Room":    deref(slot.Room),
				"Lab":     lab,
			})
		}
	}
	return export.Dataset{Headers: slotHeaders, Rows: rows}
}

// buildGridDataset lays the week out as days by periods.
func buildGridDataset(schedule timetable.Schedule) export.Dataset {
	periods := 0
	for _, day := range schedule {
		if len(day.Slots) > periods {
			periods = len(day.Slots)
		}
	}
	headers := []string{"Day"}
	for p := 1; p <= periods; p++ {
		headers = append(headers, strconv.Itoa(p))
	}

	rows := make([]map[string]string, 0, len(schedule))
	for _, day := range schedule {
		row := map[string]string{"Day": day.Day}
		for _, slot := range day.Slots {
			if slot.Empty() {
				continue
			}
			parts := []string{deref(slot.Subject)}
			if teacher := deref(slot.Teacher); teacher != "" {
				parts = append(parts, teacher)
			}
			if room := deref(slot.Room); room != "" {
				parts = append(parts, room)
			}
			row[strconv.Itoa(slot.Period)] = strings.Join(parts, " / ")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func sanitizeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "timetable"
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return "timetable_" + b.String()
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
