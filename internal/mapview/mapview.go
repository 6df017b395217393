// Package mapview holds the server-side map canvas that browsers mirror: the set of attached
// layers and the current viewport.
package mapview

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrDuplicateLayer = errors.New("mapview: layer already attached")
	ErrUnknownLayer   = errors.New("mapview: layer not attached")
)

// Map is the capability overlays need from a map handle.
type Map interface {
	AddLayer(Layer) error
	RemoveLayer(id string) error
	FitBounds(b orb.Bound, paddingPx int)
}

// Layer is anything the canvas can draw. GeoJSON must return a collection the caller may keep.
type Layer interface {
	ID() string
	GeoJSON() *geojson.FeatureCollection
	Bounds() (orb.Bound, bool)
}

// Style is the Leaflet path style applied to vector sublayers.
type Style struct {
	Color       string  `json:"color,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
}

func (s Style) IsZero() bool { return s == Style{} }

func (s Style) properties() map[string]any {
	p := map[string]any{}
	if s.Color != "" {
		p["color"] = s.Color
	}
	if s.Weight != 0 {
		p["weight"] = s.Weight
	}
	if s.FillOpacity != 0 {
		p["fillOpacity"] = s.FillOpacity
	}
	return p
}

// Viewport is the requested view. Bounds wins over Center/Zoom when set.
type Viewport struct {
	Center  orb.Point  `json:"center"`
	Zoom    int        `json:"zoom"`
	Bounds  *orb.Bound `json:"bounds,omitempty"`
	Padding int        `json:"padding,omitempty"`
}

func boundOf(g orb.Geometry) (orb.Bound, bool) {
	if g == nil {
		return orb.Bound{}, false
	}
	return g.Bound(), true
}

// Extend merges b into acc, reporting whether acc now holds anything.
func Extend(acc orb.Bound, ok bool, b orb.Bound) (orb.Bound, bool) {
	if !ok {
		return b, true
	}
	return acc.Union(b), true
}

func layerError(id string, err error) error {
	return fmt.Errorf("%w: %s", err, id)
}
