package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const insertSheetSnapshot = `-- name: InsertSheetSnapshot :one
INSERT INTO sheet_snapshots (
  id,
  source_id,
  digest,
  column_order,
  rows,
  row_count,
  fetched_at
)
VALUES ($1::uuid, $2, $3, $4, $5::jsonb, $6, $7)
RETURNING id, source_id, digest, column_order, rows, row_count, fetched_at
`

type InsertSheetSnapshotParams struct {
	ID          string
	SourceID    string
	Digest      string
	ColumnOrder []string
	Rows        []byte
	RowCount    int32
	FetchedAt   time.Time
}

func (q *Queries) InsertSheetSnapshot(ctx context.Context, arg InsertSheetSnapshotParams) (SheetSnapshot, error) {
	row := q.db.QueryRow(ctx, insertSheetSnapshot,
		arg.ID,
		arg.SourceID,
		arg.Digest,
		arg.ColumnOrder,
		string(arg.Rows),
		arg.RowCount,
		arg.FetchedAt,
	)
	var i SheetSnapshot
	err := row.Scan(&i.ID, &i.SourceID, &i.Digest, &i.ColumnOrder, &i.Rows, &i.RowCount, &i.FetchedAt)
	return i, err
}

const getLatestSheetSnapshot = `-- name: GetLatestSheetSnapshot :one
SELECT id, source_id, digest, column_order, rows, row_count, fetched_at
FROM sheet_snapshots
WHERE source_id = $1
ORDER BY fetched_at DESC
LIMIT 1
`

func (q *Queries) GetLatestSheetSnapshot(ctx context.Context, sourceID string) (SheetSnapshot, error) {
	row := q.db.QueryRow(ctx, getLatestSheetSnapshot, sourceID)
	var i SheetSnapshot
	err := row.Scan(&i.ID, &i.SourceID, &i.Digest, &i.ColumnOrder, &i.Rows, &i.RowCount, &i.FetchedAt)
	return i, err
}

const pruneSheetSnapshots = `-- name: PruneSheetSnapshots :execrows
DELETE FROM sheet_snapshots
WHERE source_id = $1
  AND id NOT IN (
    SELECT id FROM sheet_snapshots
    WHERE source_id = $1
    ORDER BY fetched_at DESC
    LIMIT $2
  )
`

type PruneSheetSnapshotsParams struct {
	SourceID string
	Keep     int32
}

func (q *Queries) PruneSheetSnapshots(ctx context.Context, arg PruneSheetSnapshotsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, pruneSheetSnapshots, arg.SourceID, arg.Keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertCounterReset = `-- name: InsertCounterReset :one
INSERT INTO counter_resets (id, counter, reset_at, actor)
VALUES ($1::uuid, $2, $3, $4)
RETURNING id, counter, reset_at, actor
`

type InsertCounterResetParams struct {
	ID      string
	Counter string
	ResetAt time.Time
	Actor   *string
}

func (q *Queries) InsertCounterReset(ctx context.Context, arg InsertCounterResetParams) (CounterReset, error) {
	row := q.db.QueryRow(ctx, insertCounterReset, arg.ID, arg.Counter, arg.ResetAt, arg.Actor)
	var i CounterReset
	err := row.Scan(&i.ID, &i.Counter, &i.ResetAt, &i.Actor)
	return i, err
}

const getLatestCounterReset = `-- name: GetLatestCounterReset :one
SELECT id, counter, reset_at, actor
FROM counter_resets
WHERE counter = $1
ORDER BY reset_at DESC
LIMIT 1
`

func (q *Queries) GetLatestCounterReset(ctx context.Context, counter string) (CounterReset, error) {
	row := q.db.QueryRow(ctx, getLatestCounterReset, counter)
	var i CounterReset
	err := row.Scan(&i.ID, &i.Counter, &i.ResetAt, &i.Actor)
	return i, err
}
