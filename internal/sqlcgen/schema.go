package sqlcgen

// Schema is applied at startup; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sheet_snapshots (
  id           uuid PRIMARY KEY,
  source_id    text NOT NULL,
  digest       text NOT NULL,
  column_order text[] NOT NULL,
  rows         jsonb NOT NULL,
  row_count    integer NOT NULL,
  fetched_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sheet_snapshots_source_fetched ON sheet_snapshots (source_id, fetched_at DESC);

CREATE TABLE IF NOT EXISTS counter_resets (
  id       uuid PRIMARY KEY,
  counter  text NOT NULL,
  reset_at timestamptz NOT NULL,
  actor    text
);
CREATE INDEX IF NOT EXISTS idx_counter_resets_counter_reset ON counter_resets (counter, reset_at DESC);
`
