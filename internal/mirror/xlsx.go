package mirror

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/pkordes/visitor-logbook/internal/domain"
)

// SheetName is the single worksheet in the xlsx artifact.
const SheetName = "Visitors Log"

// columnWidths are in Excel character units, one per header.
var columnWidths = []float64{8, 25, 18, 30, 15, 30, 25, 40, 20}

// XLSXEncoder writes the artifact as an Excel workbook with a styled header
// row, bordered data rows and fixed column widths.
type XLSXEncoder struct{}

func (XLSXEncoder) Format() domain.ExportFormat { return domain.FormatXLSX }

func (XLSXEncoder) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXEncoder) Encode(w io.Writer, rows []domain.ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return fmt.Errorf("body style: %w", err)
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("header row: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.Position, r.Name, r.Phone, r.Email, r.Date,
			r.Purpose, r.MeetsWhom, r.Comments, r.ArrivedAt,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", r.Position, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(Headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if len(rows) > 0 {
		bottomRight, err := excelize.CoordinatesToCellName(len(Headers), len(rows)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, "A2", bottomRight, bodyStyle); err != nil {
			return fmt.Errorf("style rows: %w", err)
		}
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("width %s: %w", col, err)
		}
	}

	return f.Write(w)
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

// Losses reports the cells excelize will alter: text longer than a cell can
// hold is cut to excelize.TotalCellChars, and characters XML cannot carry
// are replaced.
func (XLSXEncoder) Losses(rows []domain.ExportRow) []CellLoss {
	var out []CellLoss
	for _, r := range rows {
		for i, value := range r.Record() {
			if n := utf8.RuneCountInString(value); n > excelize.TotalCellChars {
				out = append(out, CellLoss{
					Position: r.Position,
					Column:   Headers[i],
					Reason:   fmt.Sprintf("truncated from %d to %d characters", n, excelize.TotalCellChars),
				})
			}
			if !xmlSafe(value) {
				out = append(out, CellLoss{
					Position: r.Position,
					Column:   Headers[i],
					Reason:   "characters not allowed in XML replaced",
				})
			}
		}
	}
	return out
}

// xmlSafe reports whether every rune of s is a legal XML 1.0 character.
func xmlSafe(s string) bool {
	for _, r := range s {
		switch {
		case r == '\t', r == '\n', r == '\r':
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}
