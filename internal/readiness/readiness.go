// Package readiness waits for an external handle to become available by probing it on a fixed
// delay between attempts.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval    = 500 * time.Millisecond
	DefaultMaxAttempts = 60
)

// ErrTimeout is returned once every allowed probe attempt has failed.
var ErrTimeout = errors.New("readiness: handle not ready")

// Probe reports the handle and whether it is usable. A handle that lacks the capability the
// caller needs must be reported as not ready.
type Probe[T any] func() (T, bool)

type Options struct {
	Interval    time.Duration
	MaxAttempts int
	Clock       clockwork.Clock
}

// Outcome is the settled result of a polling operation.
type Outcome[T any] struct {
	Value    T
	Attempts int
	Err      error
}

type Poller[T any] struct {
	log         zerolog.Logger
	name        string
	interval    time.Duration
	maxAttempts int
	clock       clockwork.Clock
}

func New[T any](log zerolog.Logger, name string, opts Options) *Poller[T] {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller[T]{
		log:         log.With().Str("component", "readiness").Str("handle", name).Logger(),
		name:        name,
		interval:    interval,
		maxAttempts: maxAttempts,
		clock:       clock,
	}
}

// Pending is an in-flight polling operation.
type Pending[T any] struct {
	result     chan Outcome[T]
	cancel     chan struct{}
	cancelOnce sync.Once
}

// Result delivers exactly one outcome, unless the operation was cancelled first.
func (p *Pending[T]) Result() <-chan Outcome[T] { return p.result }

// Cancel stops scheduling further probes. The outcome is abandoned: Result never delivers.
func (p *Pending[T]) Cancel() {
	p.cancelOnce.Do(func() { close(p.cancel) })
}

func (p *Pending[T]) cancelled() bool {
	select {
	case <-p.cancel:
		return true
	default:
		return false
	}
}

// Start begins polling in the background. The first probe runs immediately; each retry runs
// one interval after the previous probe returned.
func (p *Poller[T]) Start(probe Probe[T]) *Pending[T] {
	pd := &Pending[T]{
		result: make(chan Outcome[T], 1),
		cancel: make(chan struct{}),
	}
	go p.run(probe, pd)
	return pd
}

func (p *Poller[T]) run(probe Probe[T], pd *Pending[T]) {
	for attempt := 1; ; attempt++ {
		if pd.cancelled() {
			p.log.Debug().Int("attempt", attempt).Msg("readiness wait abandoned")
			return
		}

		v, ok := probe()
		if ok {
			if pd.cancelled() {
				return
			}
			p.log.Info().Int("attempts", attempt).Msg("handle ready")
			pd.result <- Outcome[T]{Value: v, Attempts: attempt}
			return
		}

		p.log.Debug().Int("attempt", attempt).Int("max_attempts", p.maxAttempts).Msg("handle not ready")
		if attempt >= p.maxAttempts {
			if pd.cancelled() {
				return
			}
			err := fmt.Errorf("%w: %s after %d attempts", ErrTimeout, p.name, attempt)
			p.log.Error().Err(err).Msg("gave up waiting for handle")
			pd.result <- Outcome[T]{Attempts: attempt, Err: err}
			return
		}

		select {
		case <-pd.cancel:
			p.log.Debug().Int("attempt", attempt).Msg("readiness wait abandoned")
			return
		case <-p.clock.After(p.interval):
		}
	}
}

// Wait blocks until the handle is ready, the attempts run out (ErrTimeout) or ctx is done.
func (p *Poller[T]) Wait(ctx context.Context, probe Probe[T]) (T, error) {
	pd := p.Start(probe)
	select {
	case out := <-pd.Result():
		return out.Value, out.Err
	case <-ctx.Done():
		pd.Cancel()
		var zero T
		return zero, ctx.Err()
	}
}

// Capable adapts a loader of an untyped handle into a Probe that only succeeds once the handle
// exists and implements T. Absent handles, nil pointers and handles of the wrong shape are all
// reported as not ready.
func Capable[T any](load func() any) Probe[T] {
	return func() (T, bool) {
		var zero T
		v := load()
		if v == nil || isNilPointer(v) {
			return zero, false
		}
		h, ok := v.(T)
		if !ok {
			return zero, false
		}
		return h, true
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
