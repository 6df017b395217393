package overlay

import (
	"errors"

	"indicadores/dashboard-go/internal/toggle"
)

// Binding ties a toggle control to overlays. A nil OnDisable overlay means unchecking does
// nothing.
type Binding struct {
	Control   string
	OnEnable  string
	OnDisable string
}

// DefaultBindings wires the dashboard checkboxes. Checking "puntos intervenidos" reloads the
// critical points; unchecking it leaves them alone.
var DefaultBindings = []Binding{
	{Control: toggle.PuntosCriticos, OnEnable: PuntosCriticos, OnDisable: PuntosCriticos},
	{Control: toggle.PuntosIntervenidos, OnEnable: PuntosCriticos},
	{Control: toggle.BateriaSocial, OnEnable: BateriaSocial, OnDisable: BateriaSocial},
	{Control: toggle.ElConsuelo, OnEnable: ElConsuelo, OnDisable: ElConsuelo},
}

// BindToggles binds each of DefaultBindings independently; the returned error joins the
// bindings that failed.
func BindToggles(sw *toggle.Switchboard, c *Controller) error {
	return Bind(sw, c, DefaultBindings)
}

func Bind(sw *toggle.Switchboard, c *Controller, bindings []Binding) error {
	var errs []error
	for _, b := range bindings {
		var onEnable, onDisable func()
		if b.OnEnable != "" {
			name := b.OnEnable
			onEnable = func() { _ = c.Enable(name) }
		}
		if b.OnDisable != "" {
			name := b.OnDisable
			onDisable = func() { _ = c.Disable(name) }
		}
		if err := sw.Bind(b.Control, onEnable, onDisable); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
