package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Day", "1", "2"},
		Rows: []map[string]string{
			{"Day": "Mon", "1": "MATH / Mrs.Roy / 101", "2": "PHYSICS LABORATORY PRACTICAL / Mr.Iyer / LAB-306"},
			{"Day": "Tue"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Day,1,2", lines[0])
	assert.Equal(t, "Tue,,", lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVExporterRejectsDuplicateHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{Headers: []string{"Day", "Day"}})
	assert.ErrorContains(t, err, "duplicate header")
}

func TestCSVExporterOptions(t *testing.T) {
	var buf bytes.Buffer
	err := NewCSVExporter(WithDelimiter(';'), WithCRLF()).Write(&buf, Dataset{
		Headers: []string{"Day", "Subject"},
		Rows:    []map[string]string{{"Day": "Mon", "Subject": "Chemistry; Lab"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Day;Subject\r\nMon;\"Chemistry; Lab\"\r\n", buf.String())
}

func TestPDFExporterRender(t *testing.T) {
	for name, exporter := range map[string]*PDFExporter{"landscape": NewPDFExporter(), "portrait": NewPortraitPDFExporter()} {
		t.Run(name, func(t *testing.T) {
			out, err := exporter.Render(sampleDataset(), "10A timetable")
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
		})
	}
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestXLSXExporterRender(t *testing.T) {
	list := Dataset{
		Headers: []string{"Day", "Period", "Subject"},
		Rows:    []map[string]string{{"Day": "Mon", "Period": "1", "Subject": "MATH"}},
	}
	out, err := NewXLSXExporter().Render(Sheet{Name: "Week", Data: sampleDataset()}, Sheet{Name: "Slots", Data: list})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Week", "Slots"}, f.GetSheetList())
	rows, err := f.GetRows("Week")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Day", "1", "2"}, rows[0])
	assert.Equal(t, "MATH / Mrs.Roy / 101", rows[1][1])

	subject, err := f.GetCellValue("Slots", "C2")
	require.NoError(t, err)
	assert.Equal(t, "MATH", subject)
}

func TestXLSXExporterRequiresSheets(t *testing.T) {
	_, err := NewXLSXExporter().Render()
	assert.Error(t, err)

	_, err = NewXLSXExporter().Render(Sheet{Name: "Week"})
	assert.Error(t, err)
}
