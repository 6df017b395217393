package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/kml"
	"indicadores/dashboard-go/internal/metrics"
)

var ErrUnknownOverlay = errors.New("overlay: unknown overlay")

type Status struct {
	Name     string `json:"name"`
	Attached bool   `json:"attached"`
	Loading  bool   `json:"loading"`
	Error    string `json:"error,omitempty"`
}

// Controller enables and disables overlays on one map. It is built once the map is ready.
type Controller struct {
	// ctx outlives requests; background KML parses are bound to it.
	ctx     context.Context
	log     zerolog.Logger
	reg     *Registry
	metrics *metrics.Metrics
	descs   map[string]Descriptor
	order   []string

	mu      sync.Mutex
	lastErr map[string]error
}

func NewController(ctx context.Context, log zerolog.Logger, reg *Registry, mets *metrics.Metrics, descs ...Descriptor) *Controller {
	c := &Controller{
		ctx:     ctx,
		log:     log.With().Str("component", "overlay").Logger(),
		reg:     reg,
		metrics: mets,
		descs:   make(map[string]Descriptor, len(descs)),
		lastErr: map[string]error{},
	}
	for _, d := range descs {
		if _, dup := c.descs[d.Name]; !dup {
			c.order = append(c.order, d.Name)
		}
		c.descs[d.Name] = d
	}
	return c
}

func (c *Controller) Registry() *Registry { return c.reg }

func (c *Controller) descriptor(name string) (Descriptor, error) {
	d, ok := c.descs[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownOverlay, name)
	}
	return d, nil
}

// Enable (re)loads the overlay and attaches it, replacing any live handle. Failures are
// logged and returned; they never affect other overlays.
func (c *Controller) Enable(name string) error {
	d, err := c.descriptor(name)
	if err != nil {
		c.log.Warn().Str("overlay", name).Msg("enable unknown overlay")
		return err
	}

	h, err := d.Load(c.ctx)
	c.metrics.ObserveOverlay(name, "load", err)
	if err != nil {
		c.setErr(name, err)
		c.log.Error().Err(err).Str("overlay", name).Msg("overlay load failed")
		return fmt.Errorf("load %s: %w", name, err)
	}

	if err := c.reg.Attach(name, h); err != nil {
		c.setErr(name, err)
		return err
	}
	c.setErr(name, nil)

	if kl, ok := h.(*kml.Layer); ok {
		c.awaitKML(d, kl)
		return nil
	}
	if d.OnReady != nil {
		c.reg.WithCurrent(name, h, func() { d.OnReady(c.reg.Map(), h) })
	}
	return nil
}

func (c *Controller) awaitKML(d Descriptor, kl *kml.Layer) {
	kl.OnReady(func(l *kml.Layer) {
		applied := c.reg.WithCurrent(d.Name, l, func() {
			if d.OnReady != nil {
				d.OnReady(c.reg.Map(), l)
			}
		})
		if !applied {
			c.log.Debug().Str("overlay", d.Name).Msg("stale overlay ready ignored")
			return
		}
		c.log.Info().Str("overlay", d.Name).Int("sublayers", l.Len()).Msg("overlay ready")
	}).OnError(func(err error) {
		c.metrics.ObserveOverlay(d.Name, "ready", err)
		if !c.reg.IsCurrent(d.Name, kl) {
			c.log.Debug().Err(err).Str("overlay", d.Name).Msg("stale overlay error ignored")
			return
		}
		c.setErr(d.Name, err)
		c.reg.DetachIfCurrent(d.Name, kl)
		c.log.Error().Err(err).Str("overlay", d.Name).Msg("overlay failed to load; detached")
	})
}

func (c *Controller) Disable(name string) error {
	if _, err := c.descriptor(name); err != nil {
		return err
	}
	c.reg.Detach(name)
	c.setErr(name, nil)
	return nil
}

func (c *Controller) setErr(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.lastErr, name)
		return
	}
	c.lastErr[name] = err
}

// Status reports every overlay in descriptor order.
func (c *Controller) Status() []Status {
	out := make([]Status, 0, len(c.order))
	for _, name := range c.order {
		st := Status{Name: name}
		if h, ok := c.reg.Current(name); ok {
			st.Attached = true
			if kl, ok := h.(*kml.Layer); ok {
				if loaded, _ := kl.Loaded(); !loaded {
					st.Loading = true
				}
			}
		}
		c.mu.Lock()
		if err := c.lastErr[name]; err != nil {
			st.Error = err.Error()
		}
		c.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// Names lists the configured overlays.
func (c *Controller) Names() []string { return append([]string(nil), c.order...) }
