// Package toggle keeps the named boolean controls of the dashboard and calls bound observers on
// every unchecked/checked transition.
package toggle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

const (
	PuntosCriticos     = "toggle-puntos-criticos"
	PuntosIntervenidos = "toggle-puntos-intervenidos"
	BateriaSocial      = "toggle-bateria-social"
	ElConsuelo         = "toggle-el-consuelo"
)

var (
	ErrUnknownControl   = errors.New("toggle: unknown control")
	ErrDuplicateControl = errors.New("toggle: control already registered")
)

type Control struct {
	ID      string `json:"id"`
	Checked bool   `json:"checked"`
}

type observer struct {
	onEnable  func()
	onDisable func()
}

type control struct {
	// mu serializes transitions and observer calls of one control.
	mu        sync.Mutex
	checked   bool
	observers []observer
}

type Switchboard struct {
	log zerolog.Logger

	mu       sync.RWMutex
	controls map[string]*control
	order    []string
}

func New(log zerolog.Logger) *Switchboard {
	return &Switchboard{
		log:      log.With().Str("component", "toggle").Logger(),
		controls: map[string]*control{},
	}
}

func (s *Switchboard) Register(id string, initial bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.controls[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateControl, id)
	}
	s.controls[id] = &control{checked: initial}
	s.order = append(s.order, id)
	return nil
}

func (s *Switchboard) lookup(id string) (*control, error) {
	s.mu.RLock()
	c, ok := s.controls[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}
	return c, nil
}

// Bind adds an observer to the control. Observers accumulate; earlier ones keep firing.
// Either callback may be nil.
func (s *Switchboard) Bind(id string, onEnable, onDisable func()) error {
	c, err := s.lookup(id)
	if err != nil {
		s.log.Warn().Str("control", id).Msg("cannot bind missing control")
		return err
	}
	c.mu.Lock()
	c.observers = append(c.observers, observer{onEnable: onEnable, onDisable: onDisable})
	c.mu.Unlock()
	return nil
}

// Set moves the control to checked. Only a real transition notifies observers, synchronously
// and in bind order; changed reports whether one happened. Observers must not Set the same
// control.
func (s *Switchboard) Set(id string, checked bool) (changed bool, err error) {
	c, err := s.lookup(id)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checked == checked {
		return false, nil
	}
	c.checked = checked
	s.log.Info().Str("control", id).Bool("checked", checked).Msg("toggle changed")

	for i, o := range c.observers {
		fn := o.onDisable
		if checked {
			fn = o.onEnable
		}
		if fn != nil {
			s.notify(id, i, fn)
		}
	}
	return true, nil
}

// notify isolates observers from each other's panics.
func (s *Switchboard) notify(id string, idx int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("control", id).Int("observer", idx).Interface("panic", r).Msg("toggle observer panicked")
		}
	}()
	fn()
}

func (s *Switchboard) State(id string) (bool, error) {
	c, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checked, nil
}

// Controls lists every control in registration order.
func (s *Switchboard) Controls() []Control {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	out := make([]Control, 0, len(ids))
	for _, id := range ids {
		checked, err := s.State(id)
		if err != nil {
			continue
		}
		out = append(out, Control{ID: id, Checked: checked})
	}
	return out
}
