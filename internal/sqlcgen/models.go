package sqlcgen

import "time"

type SheetSnapshot struct {
	ID          string
	SourceID    string
	Digest      string
	ColumnOrder []string
	Rows        []byte
	RowCount    int32
	FetchedAt   time.Time
}

type CounterReset struct {
	ID      string
	Counter string
	ResetAt time.Time
	Actor   *string
}
