// Package overlay manages the named map overlays: the registry of live layer handles, the
// descriptors that know how to build each overlay, and the controller driven by the toggles.
package overlay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/mapview"
	"indicadores/dashboard-go/internal/metrics"
)

// Registry tracks at most one live handle per overlay name and is the only code that adds or
// removes overlay layers on its map.
type Registry struct {
	log     zerolog.Logger
	m       mapview.Map
	metrics *metrics.Metrics

	mu    sync.Mutex
	slots map[string]mapview.Layer
}

func NewRegistry(log zerolog.Logger, m mapview.Map, mets *metrics.Metrics) *Registry {
	return &Registry{
		log:     log.With().Str("component", "overlay_registry").Logger(),
		m:       m,
		metrics: mets,
		slots:   map[string]mapview.Layer{},
	}
}

func (r *Registry) Map() mapview.Map { return r.m }

// Attach makes h the live handle for name, detaching any previous handle first. If the map
// rejects h the slot is left empty.
func (r *Registry) Attach(name string, h mapview.Layer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.detachLocked(name)

	if err := r.m.AddLayer(h); err != nil {
		r.metrics.ObserveOverlay(name, "attach", err)
		r.log.Error().Err(err).Str("overlay", name).Msg("attach overlay failed")
		return fmt.Errorf("attach %s: %w", name, err)
	}
	r.slots[name] = h
	r.metrics.ObserveOverlay(name, "attach", nil)
	r.log.Info().Str("overlay", name).Str("layer", h.ID()).Msg("overlay attached")
	return nil
}

// Detach removes the live handle for name, if any. A map error is logged and the slot is
// cleared regardless.
func (r *Registry) Detach(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked(name)
}

// DetachIfCurrent detaches name only while h is still its live handle.
func (r *Registry) DetachIfCurrent(name string, h mapview.Layer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.slots[name]; !ok || cur != h {
		return false
	}
	r.detachLocked(name)
	return true
}

func (r *Registry) detachLocked(name string) {
	h, ok := r.slots[name]
	if !ok {
		return
	}
	delete(r.slots, name)

	err := r.m.RemoveLayer(h.ID())
	r.metrics.ObserveOverlay(name, "detach", err)
	if err != nil {
		r.log.Warn().Err(err).Str("overlay", name).Msg("detach overlay failed; slot cleared")
		return
	}
	r.log.Info().Str("overlay", name).Msg("overlay detached")
}

func (r *Registry) IsAttached(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.slots[name]
	return ok
}

// IsCurrent reports whether h is still the live handle for name. Async completions check it
// before applying side effects.
func (r *Registry) IsCurrent(name string, h mapview.Layer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.slots[name]
	return ok && cur == h
}

// WithCurrent runs fn while h is the live handle for name, holding the registry lock so a
// concurrent detach or replace waits for fn to return. fn must not call back into r.
func (r *Registry) WithCurrent(name string, h mapview.Layer, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.slots[name]; !ok || cur != h {
		return false
	}
	fn()
	return true
}

func (r *Registry) Current(name string) (mapview.Layer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.slots[name]
	return h, ok
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
