package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type Marker struct {
	Name    string
	Point   orb.Point
	Color   string
	Popup   string
	IconURL string
}

// MarkerLayer is an immutable group of labelled point markers.
type MarkerLayer struct {
	id      string
	markers []Marker
}

func NewMarkerLayer(id string, markers []Marker) *MarkerLayer {
	return &MarkerLayer{id: id, markers: append([]Marker(nil), markers...)}
}

func (l *MarkerLayer) ID() string { return l.id }

func (l *MarkerLayer) Markers() []Marker { return append([]Marker(nil), l.markers...) }

func (l *MarkerLayer) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range l.markers {
		f := geojson.NewFeature(m.Point)
		f.Properties["name"] = m.Name
		f.Properties["popup"] = m.Popup
		f.Properties["color"] = m.Color
		if m.IconURL != "" {
			f.Properties["icon"] = m.IconURL
		}
		fc.Append(f)
	}
	return fc
}

func (l *MarkerLayer) Bounds() (orb.Bound, bool) {
	if len(l.markers) == 0 {
		return orb.Bound{}, false
	}
	mp := make(orb.MultiPoint, 0, len(l.markers))
	for _, m := range l.markers {
		mp = append(mp, m.Point)
	}
	return boundOf(mp)
}
