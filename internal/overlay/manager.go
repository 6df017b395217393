package overlay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/mapview"
	"indicadores/dashboard-go/internal/metrics"
	"indicadores/dashboard-go/internal/readiness"
	"indicadores/dashboard-go/internal/toggle"
)

// ErrMapNotReady is returned by Manager operations before the map handle was found.
var ErrMapNotReady = errors.New("overlay: map not ready")

const DefaultAutoLoadDelay = 500 * time.Millisecond

type ManagerOptions struct {
	// AutoLoad is checked AutoLoadDelay after the map becomes ready. Empty disables it.
	AutoLoad      string
	AutoLoadDelay time.Duration
	Readiness     readiness.Options
	Clock         clockwork.Clock
}

// Manager waits for the shared map, then builds the controller and wires the toggles to it.
type Manager struct {
	log     zerolog.Logger
	holder  *mapview.Holder
	sw      *toggle.Switchboard
	metrics *metrics.Metrics
	descs   []Descriptor
	opts    ManagerOptions

	mu   sync.RWMutex
	ctrl *Controller
	err  error
}

func NewManager(log zerolog.Logger, holder *mapview.Holder, sw *toggle.Switchboard, mets *metrics.Metrics, opts ManagerOptions, descs ...Descriptor) *Manager {
	if opts.AutoLoadDelay <= 0 {
		opts.AutoLoadDelay = DefaultAutoLoadDelay
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Readiness.Clock == nil {
		opts.Readiness.Clock = opts.Clock
	}
	return &Manager{
		log:     log.With().Str("component", "overlay_manager").Logger(),
		holder:  holder,
		sw:      sw,
		metrics: mets,
		descs:   descs,
		opts:    opts,
	}
}

// Run waits for the map, binds the toggles and schedules the auto-loaded overlay. It returns
// once that setup is done, or with the readiness error.
func (mg *Manager) Run(ctx context.Context) error {
	poller := readiness.New[mapview.Map](mg.log, "map", mg.opts.Readiness)
	pending := poller.Start(readiness.Capable[mapview.Map](mg.holder.Load))

	var out readiness.Outcome[mapview.Map]
	select {
	case out = <-pending.Result():
	case <-ctx.Done():
		pending.Cancel()
		return ctx.Err()
	}
	mg.metrics.SetMapReadyAttempts(out.Attempts)
	if out.Err != nil {
		mg.mu.Lock()
		mg.err = out.Err
		mg.mu.Unlock()
		mg.log.Error().Err(out.Err).Msg("map never became ready; overlays disabled")
		return out.Err
	}

	reg := NewRegistry(mg.log, out.Value, mg.metrics)
	ctrl := NewController(ctx, mg.log, reg, mg.metrics, mg.descs...)
	if err := BindToggles(mg.sw, ctrl); err != nil {
		mg.log.Warn().Err(err).Msg("some toggles could not be bound")
	}

	mg.mu.Lock()
	mg.ctrl = ctrl
	mg.mu.Unlock()
	mg.log.Info().Int("attempts", out.Attempts).Msg("map ready; overlays bound")

	if mg.opts.AutoLoad != "" {
		go mg.autoLoad(ctx)
	}
	return nil
}

func (mg *Manager) autoLoad(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-mg.opts.Clock.After(mg.opts.AutoLoadDelay):
	}
	changed, err := mg.sw.Set(mg.opts.AutoLoad, true)
	if err != nil {
		mg.log.Warn().Err(err).Str("control", mg.opts.AutoLoad).Msg("auto-load failed")
		return
	}
	if changed {
		return
	}
	// Checked before the map was ready: no change event fired, so load it directly.
	for _, b := range DefaultBindings {
		if b.Control == mg.opts.AutoLoad && b.OnEnable != "" {
			mg.mu.RLock()
			ctrl := mg.ctrl
			mg.mu.RUnlock()
			if err := ctrl.Enable(b.OnEnable); err != nil {
				mg.log.Warn().Err(err).Str("overlay", b.OnEnable).Msg("auto-load failed")
			}
		}
	}
}

// Controller returns the live controller, or ErrMapNotReady (or the readiness error).
func (mg *Manager) Controller() (*Controller, error) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	if mg.ctrl != nil {
		return mg.ctrl, nil
	}
	if mg.err != nil {
		return nil, mg.err
	}
	return nil, ErrMapNotReady
}

// Status reports every configured overlay; before the map is ready all are detached.
func (mg *Manager) Status() []Status {
	if ctrl, err := mg.Controller(); err == nil {
		return ctrl.Status()
	}
	out := make([]Status, 0, len(mg.descs))
	for _, d := range mg.descs {
		out = append(out, Status{Name: d.Name})
	}
	return out
}
