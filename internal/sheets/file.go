package sheets

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"indicadores/dashboard-go/internal/dataset"
)

// FileSource reads a local .xlsx workbook, for offline use and exports fed back in.
type FileSource struct {
	path  string
	sheet string
}

// NewFileSource reads sheet from path; an empty sheet name means the first sheet.
func NewFileSource(path, sheet string) *FileSource {
	return &FileSource{path: path, sheet: sheet}
}

func (f *FileSource) ID() string { return "file:" + f.path }

func (f *FileSource) Fetch(ctx context.Context) (dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return dataset.Table{}, err
	}
	wb, err := excelize.OpenFile(f.path)
	if err != nil {
		return dataset.Table{}, fmt.Errorf("sheets: open %s: %w", f.path, err)
	}
	defer wb.Close()

	sheet := f.sheet
	if sheet == "" {
		sheet = wb.GetSheetName(0)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return dataset.Table{}, fmt.Errorf("sheets: read %s!%s: %w", f.path, sheet, err)
	}
	return tableFromCells(rows)
}
