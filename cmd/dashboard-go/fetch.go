package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"indicadores/dashboard-go/internal/dataset"
	"indicadores/dashboard-go/internal/export"
	"indicadores/dashboard-go/internal/httpapi"
	"indicadores/dashboard-go/internal/table"
)

type fetchSummary struct {
	Source     string                  `json:"source"`
	Rows       int                     `json:"rows"`
	Columns    []string                `json:"columns"`
	Indicators dataset.Indicators      `json:"indicators"`
	Dates      dataset.NormalizeReport `json:"dates"`
	Validation dataset.Validation      `json:"validation"`
}

func newFetchCmd() *cobra.Command {
	var (
		sheetFile string
		xlsxOut   string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the activities once and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := httpapi.NewLogger(cfg.ServiceName, cfg.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Sheets.Timeout)
			defer cancel()

			src, err := newSource(ctx, logger, cfg.Sheets, sheetFile)
			if err != nil {
				return err
			}
			raw, err := src.Fetch(ctx)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", src.ID(), err)
			}
			t, report := dataset.NormalizeTable(raw)

			if xlsxOut != "" {
				f, err := os.Create(xlsxOut)
				if err != nil {
					return err
				}
				if err := export.WriteXLSX(f, table.Render(t.Rows, t.ColumnOrder())); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				cmd.PrintErrln(fmt.Sprintf("Wrote %d rows to %s", len(t.Rows), xlsxOut))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(fetchSummary{
				Source:     src.ID(),
				Rows:       len(t.Rows),
				Columns:    t.ColumnOrder(),
				Indicators: dataset.Aggregate(t.Rows),
				Dates:      report,
				Validation: dataset.ValidateRequired(t, dataset.DefaultRequiredFields),
			})
		},
	}
	cmd.Flags().StringVar(&sheetFile, "sheet-file", "", "read activities from a local .xlsx instead of Google Sheets")
	cmd.Flags().StringVarP(&xlsxOut, "output", "o", "", "also write the normalized table to this .xlsx file")
	return cmd
}
