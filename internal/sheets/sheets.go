// Package sheets reads the activity table from its source spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"indicadores/dashboard-go/internal/dataset"
)

const (
	DefaultSpreadsheetID = "1v4duGwbae0AAHPAEXsGZPZqWI35JkgHyhHg4yHTIpPU"
	DefaultRange         = "Sheet1"
)

var (
	ErrNoCredentials = errors.New("sheets: no credentials configured")
	ErrEmptySheet    = errors.New("sheets: sheet has no header row")
)

// Source yields the current table. Implementations must be safe for concurrent use.
type Source interface {
	Fetch(ctx context.Context) (dataset.Table, error)
	ID() string
}

type Config struct {
	SpreadsheetID string
	Range         string
	// CredentialsJSON wins over CredentialsFile when both are set.
	CredentialsJSON string
	CredentialsFile string
}

type GoogleSource struct {
	log zerolog.Logger
	srv *gsheets.Service
	id  string
	rng string
}

// NewGoogleSource authenticates with a service account (read-only scope). Extra client options
// are appended after the credentials.
func NewGoogleSource(ctx context.Context, log zerolog.Logger, cfg Config, extra ...option.ClientOption) (*GoogleSource, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		id = DefaultSpreadsheetID
	}
	rng := strings.TrimSpace(cfg.Range)
	if rng == "" {
		rng = DefaultRange
	}

	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case len(extra) == 0:
		return nil, ErrNoCredentials
	}
	opts = append(opts, option.WithScopes(gsheets.SpreadsheetsReadonlyScope))
	opts = append(opts, extra...)

	srv, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: new service: %w", err)
	}
	return &GoogleSource{
		log: log.With().Str("component", "sheets").Str("spreadsheet_id", id).Logger(),
		srv: srv,
		id:  id,
		rng: rng,
	}, nil
}

func (g *GoogleSource) ID() string { return g.id }

func (g *GoogleSource) Fetch(ctx context.Context) (dataset.Table, error) {
	resp, err := g.srv.Spreadsheets.Values.Get(g.id, g.rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return dataset.Table{}, fmt.Errorf("sheets: get %s!%s: %w", g.id, g.rng, err)
	}
	t, err := tableFromValues(resp.Values)
	if err != nil {
		return dataset.Table{}, err
	}
	g.log.Debug().Int("rows", len(t.Rows)).Msg("sheet fetched")
	return t, nil
}

func tableFromValues(values [][]interface{}) (dataset.Table, error) {
	cells := make([][]string, 0, len(values))
	for _, row := range values {
		out := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				out[i] = fmt.Sprint(v)
			}
		}
		cells = append(cells, out)
	}
	return tableFromCells(cells)
}

// tableFromCells drops fully blank rows and requires a header row.
func tableFromCells(cells [][]string) (dataset.Table, error) {
	kept := make([][]string, 0, len(cells))
	for _, row := range cells {
		if blank(row) {
			continue
		}
		kept = append(kept, row)
	}
	if len(kept) == 0 {
		return dataset.Table{}, ErrEmptySheet
	}
	for i, h := range kept[0] {
		kept[0][i] = strings.TrimSpace(h)
	}
	return dataset.FromValues(kept), nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
