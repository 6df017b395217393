// Package refresher keeps the dataset in sync with the source sheet: once at startup, on a
// fixed interval and on demand.
package refresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/dataset"
	"indicadores/dashboard-go/internal/metrics"
	"indicadores/dashboard-go/internal/sheets"
	"indicadores/dashboard-go/internal/snapshot"
)

const (
	DefaultInterval   = time.Hour
	DefaultRetryDelay = 30 * time.Second
	DefaultTimeout    = 60 * time.Second
)

// Store is the subset of *snapshot.Store the worker needs.
type Store interface {
	Replace(ctx context.Context, t dataset.Table, report dataset.NormalizeReport, at time.Time) (snapshot.Snapshot, bool, error)
	Current() (snapshot.Snapshot, bool)
}

type Result struct {
	Changed    bool
	Rows       int
	LastUpdate time.Time
	Report     dataset.NormalizeReport
}

type Options struct {
	Interval   time.Duration
	RetryDelay time.Duration
	Timeout    time.Duration
	Clock      clockwork.Clock
}

type Worker struct {
	log        zerolog.Logger
	src        sheets.Source
	store      Store
	interval   time.Duration
	retryDelay time.Duration
	timeout    time.Duration
	clock      clockwork.Clock
	metrics    *metrics.Metrics

	// runMu serializes refreshes so a manual refresh never races the scheduled one.
	runMu sync.Mutex
}

func New(log zerolog.Logger, src sheets.Source, store Store, opts Options, m *metrics.Metrics) *Worker {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	retry := opts.RetryDelay
	if retry <= 0 {
		retry = DefaultRetryDelay
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Worker{
		log:        log.With().Str("component", "refresher").Logger(),
		src:        src,
		store:      store,
		interval:   interval,
		retryDelay: retry,
		timeout:    timeout,
		clock:      clock,
		metrics:    m,
	}
}

// Run refreshes immediately and then every interval until ctx is done. Failed runs are retried
// sooner, backing off up to the regular interval.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.src == nil {
		return
	}

	var consecutiveFailures int
	if _, err := w.RefreshNow(ctx); err != nil {
		consecutiveFailures++
	}

	timer := w.clock.NewTimer(backoffDuration(w.interval, w.retryDelay, consecutiveFailures))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
		}

		if _, err := w.RefreshNow(ctx); err != nil {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}
		timer.Reset(backoffDuration(w.interval, w.retryDelay, consecutiveFailures))
	}
}

func backoffDuration(interval, retry time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return interval
	}

	// retry * 2^(failures-1), never past the regular interval. Doubling stops once the
	// interval is reached so large failure counts cannot overflow.
	d := retry
	for i := 1; i < failures && d < interval; i++ {
		d *= 2
	}
	if d > interval {
		return interval
	}
	return d
}

// RefreshNow fetches the sheet, normalizes the end-date column and stores the result.
func (w *Worker) RefreshNow(ctx context.Context) (Result, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	start := w.clock.Now()
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	raw, err := w.src.Fetch(runCtx)
	if err != nil {
		w.metrics.ObserveRefresh("failed", 0, w.clock.Since(start))
		w.log.Error().Err(err).Str("source", w.src.ID()).Msg("sheet refresh failed")
		res := Result{}
		if cur, ok := w.store.Current(); ok {
			res.Rows = len(cur.Table.Rows)
			res.LastUpdate = cur.FetchedAt
		}
		return res, fmt.Errorf("refresh: %w", err)
	}

	normalized, report := dataset.NormalizeTable(raw)
	snap, changed, err := w.store.Replace(runCtx, normalized, report, w.clock.Now())
	if err != nil {
		w.metrics.ObserveRefresh("failed", 0, w.clock.Since(start))
		return Result{}, fmt.Errorf("refresh: store: %w", err)
	}

	outcome := "unchanged"
	if changed {
		outcome = "changed"
	}
	w.metrics.ObserveRefresh(outcome, len(snap.Table.Rows), w.clock.Since(start))
	w.log.Info().
		Str("source", w.src.ID()).
		Bool("changed", changed).
		Int("rows", len(snap.Table.Rows)).
		Int("dates_original", report.Original).
		Int("dates_normalized", report.Normalized).
		Int("dates_failed", report.Failed).
		Msg("sheet refresh complete")

	return Result{
		Changed:    changed,
		Rows:       len(snap.Table.Rows),
		LastUpdate: snap.FetchedAt,
		Report:     report,
	}, nil
}
