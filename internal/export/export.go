// Package export writes rendered tables as spreadsheets.
package export

import (
	"fmt"
	"io"
	"regexp"

	"github.com/xuri/excelize/v2"

	"indicadores/dashboard-go/internal/dataset"
	"indicadores/dashboard-go/internal/table"
)

const (
	SheetName   = "Sheet1"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var numericCell = regexp.MustCompile(`^\d[\d.,]*$`)

// CellValue returns a number for cells that read as one so spreadsheet tools can sum them.
func CellValue(s string) any {
	if numericCell.MatchString(s) {
		return dataset.ParseNumber(s)
	}
	return s
}

// WriteXLSX writes the view's headers and rows to a single-sheet workbook.
func WriteXLSX(w io.Writer, v table.View) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	head := make([]any, len(v.Headers))
	for i, h := range v.Headers {
		head[i] = h.Name
	}
	if err := f.SetSheetRow(SheetName, "A1", &head); err != nil {
		return fmt.Errorf("export: header row: %w", err)
	}
	for i, r := range v.Rows {
		row := make([]any, len(r))
		for j, c := range r {
			row[j] = CellValue(c)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: row %d: %w", i, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("export: row %d: %w", i, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
