package snapshot

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/sqlcgen"
)

var ErrInvalidCode = errors.New("snapshot: invalid reset code")

type CounterQueries interface {
	InsertCounterReset(ctx context.Context, arg sqlcgen.InsertCounterResetParams) (sqlcgen.CounterReset, error)
	GetLatestCounterReset(ctx context.Context, counter string) (sqlcgen.CounterReset, error)
}

// Counter tracks the date a "days without" counter was last reset.
type Counter struct {
	log   zerolog.Logger
	q     CounterQueries
	name  string
	code  string
	clock clockwork.Clock

	mu      sync.RWMutex
	resetAt time.Time
}

// NewCounter starts from initial until Load finds a persisted reset. q may be nil.
func NewCounter(log zerolog.Logger, q CounterQueries, name, code string, initial time.Time, clock clockwork.Clock) *Counter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Counter{
		log:     log.With().Str("component", "counter").Str("counter", name).Logger(),
		q:       q,
		name:    name,
		code:    code,
		clock:   clock,
		resetAt: initial,
	}
}

func (c *Counter) Load(ctx context.Context) error {
	if c.q == nil {
		return nil
	}
	row, err := c.q.GetLatestCounterReset(ctx, c.name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load counter %s: %w", c.name, err)
	}
	c.mu.Lock()
	c.resetAt = row.ResetAt
	c.mu.Unlock()
	return nil
}

// Reset restarts the counter now when code matches.
func (c *Counter) Reset(ctx context.Context, code, actor string) (time.Time, error) {
	if c.code == "" || subtle.ConstantTimeCompare([]byte(code), []byte(c.code)) != 1 {
		c.log.Warn().Str("actor", actor).Msg("counter reset rejected")
		return time.Time{}, ErrInvalidCode
	}
	now := c.clock.Now()

	if c.q != nil {
		var who *string
		if actor != "" {
			who = &actor
		}
		if _, err := c.q.InsertCounterReset(ctx, sqlcgen.InsertCounterResetParams{
			ID:      uuid.NewString(),
			Counter: c.name,
			ResetAt: now,
			Actor:   who,
		}); err != nil {
			return time.Time{}, fmt.Errorf("persist counter reset: %w", err)
		}
	}

	c.mu.Lock()
	c.resetAt = now
	c.mu.Unlock()
	c.log.Info().Str("actor", actor).Time("reset_at", now).Msg("counter reset")
	return now, nil
}

func (c *Counter) ResetAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt
}

// DaysSince counts whole days elapsed since the last reset, never negative.
func (c *Counter) DaysSince(now time.Time) int {
	d := now.Sub(c.ResetAt())
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

func (c *Counter) Days() int { return c.DaysSince(c.clock.Now()) }
