// Package snapshot holds the current activity dataset, detects changes between fetches and
// optionally persists snapshots to Postgres.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/dataset"
	"indicadores/dashboard-go/internal/sqlcgen"
)

const DefaultKeep = 48

// Queries is the subset of sqlcgen the store needs. *sqlcgen.Queries satisfies it.
type Queries interface {
	InsertSheetSnapshot(ctx context.Context, arg sqlcgen.InsertSheetSnapshotParams) (sqlcgen.SheetSnapshot, error)
	GetLatestSheetSnapshot(ctx context.Context, sourceID string) (sqlcgen.SheetSnapshot, error)
	PruneSheetSnapshots(ctx context.Context, arg sqlcgen.PruneSheetSnapshotsParams) (int64, error)
}

type Snapshot struct {
	ID        string
	Table     dataset.Table
	Report    dataset.NormalizeReport
	Digest    string
	FetchedAt time.Time
}

type Options struct {
	// SourceID keys persisted snapshots, usually the spreadsheet id.
	SourceID string
	// Keep bounds the persisted history per source.
	Keep int
}

type Store struct {
	log      zerolog.Logger
	q        Queries
	sourceID string
	keep     int

	mu  sync.RWMutex
	cur *Snapshot
}

// New builds a store. q may be nil, in which case snapshots live only in memory.
func New(log zerolog.Logger, q Queries, opts Options) *Store {
	keep := opts.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Store{
		log:      log.With().Str("component", "snapshot").Logger(),
		q:        q,
		sourceID: opts.SourceID,
		keep:     keep,
	}
}

// Digest hashes the canonical JSON of t. Column order and row order are significant.
func Digest(t dataset.Table) (string, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Replace installs t as the current dataset unless it equals the current one. Unchanged data
// keeps the previous FetchedAt. A persistence failure is logged; memory stays authoritative.
func (s *Store) Replace(ctx context.Context, t dataset.Table, report dataset.NormalizeReport, at time.Time) (Snapshot, bool, error) {
	digest, err := Digest(t)
	if err != nil {
		return Snapshot{}, false, err
	}

	s.mu.Lock()
	if s.cur != nil && s.cur.Digest == digest {
		cur := *s.cur
		s.mu.Unlock()
		s.log.Info().Int("rows", len(t.Rows)).Msg("dataset unchanged")
		return cur, false, nil
	}
	snap := Snapshot{
		ID:        uuid.NewString(),
		Table:     t,
		Report:    report,
		Digest:    digest,
		FetchedAt: at,
	}
	s.cur = &snap
	s.mu.Unlock()

	s.log.Info().Str("snapshot_id", snap.ID).Int("rows", len(t.Rows)).Msg("dataset replaced")
	s.persist(ctx, snap)
	return snap, true, nil
}

func (s *Store) persist(ctx context.Context, snap Snapshot) {
	if s.q == nil {
		return
	}
	rows, err := json.Marshal(snap.Table.Rows)
	if err != nil {
		s.log.Warn().Err(err).Msg("encode snapshot rows")
		return
	}
	if _, err := s.q.InsertSheetSnapshot(ctx, sqlcgen.InsertSheetSnapshotParams{
		ID:          snap.ID,
		SourceID:    s.sourceID,
		Digest:      snap.Digest,
		ColumnOrder: snap.Table.Columns,
		Rows:        rows,
		RowCount:    int32(len(snap.Table.Rows)),
		FetchedAt:   snap.FetchedAt,
	}); err != nil {
		s.log.Warn().Err(err).Str("snapshot_id", snap.ID).Msg("failed to persist snapshot")
		return
	}
	pruned, err := s.q.PruneSheetSnapshots(ctx, sqlcgen.PruneSheetSnapshotsParams{
		SourceID: s.sourceID,
		Keep:     int32(s.keep),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to prune snapshots")
		return
	}
	if pruned > 0 {
		s.log.Debug().Int64("pruned", pruned).Msg("pruned old snapshots")
	}
}

// Load seeds the store from the latest persisted snapshot. Having none is not an error.
func (s *Store) Load(ctx context.Context) (bool, error) {
	if s.q == nil {
		return false, nil
	}
	row, err := s.q.GetLatestSheetSnapshot(ctx, s.sourceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}

	var rows []dataset.Row
	if err := json.Unmarshal(row.Rows, &rows); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", row.ID, err)
	}
	t := dataset.Table{Columns: row.ColumnOrder, Rows: rows}
	digest, err := Digest(t)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.cur = &Snapshot{ID: row.ID, Table: t, Digest: digest, FetchedAt: row.FetchedAt}
	s.mu.Unlock()
	s.log.Info().Str("snapshot_id", row.ID).Int("rows", len(rows)).Time("fetched_at", row.FetchedAt).Msg("seeded dataset from database")
	return true, nil
}

func (s *Store) Current() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return Snapshot{}, false
	}
	return *s.cur, true
}
