package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/config"
	"indicadores/dashboard-go/internal/sheets"
)

// newSource reads the activities from a local workbook when file is set, from Google Sheets
// otherwise.
func newSource(ctx context.Context, log zerolog.Logger, sc config.Sheet, file string) (sheets.Source, error) {
	if file != "" {
		return sheets.NewFileSource(file, sc.Range), nil
	}
	src, err := sheets.NewGoogleSource(ctx, log, sheets.Config{
		SpreadsheetID:   sc.SpreadsheetID,
		Range:           sc.Range,
		CredentialsJSON: sc.CredentialsJSON,
		CredentialsFile: sc.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sc.SpreadsheetID, err)
	}
	return src, nil
}
