package overlay

import (
	"context"
	"slices"

	"github.com/paulmach/orb"

	"indicadores/dashboard-go/internal/kml"
	"indicadores/dashboard-go/internal/mapview"
)

const (
	PuntosCriticos = "puntosCriticos"
	ElConsuelo     = "elConsuelo"
	BateriaSocial  = "bateriaSocial"
)

const (
	criticalPointsPadding = 50

	greenMarkerIcon = "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-green.png"
	redMarkerIcon   = "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-red.png"

	DefaultElConsueloKML    = "data/ELCONSUELO.kml"
	DefaultBateriaSocialKML = "data/Bateria_social.kml"
)

// BateriaSocialStyle is applied to every vector sublayer of the Batería social overlay.
var BateriaSocialStyle = mapview.Style{Color: "#4ECDC4", Weight: 3, FillOpacity: 0.5}

// Descriptor knows how to build one overlay. Load may return a layer that is still loading;
// OnReady then runs once it is ready and only while it is still the live handle.
type Descriptor struct {
	Name    string
	Load    func(ctx context.Context) (mapview.Layer, error)
	OnReady func(m mapview.Map, h mapview.Layer)
}

type CriticalPoint struct {
	Name        string  `yaml:"name" json:"name"`
	Lat         float64 `yaml:"lat" json:"lat"`
	Lng         float64 `yaml:"lng" json:"lng"`
	Description string  `yaml:"description" json:"description"`
}

var DefaultCriticalPoints = []CriticalPoint{
	{Name: "1", Lat: 4.58012, Lng: -74.07175, Description: "Punto crítico 1 - Ordinarios, voluminosos y llantas"},
	{Name: "2", Lat: 4.57981, Lng: -74.07009, Description: "Punto crítico 2 - Ordinarios y escombro"},
	{Name: "3", Lat: 4.58061, Lng: -74.07126, Description: "Punto crítico 3 - Ordinarios y escombro"},
	{Name: "6", Lat: 4.58111, Lng: -74.07056, Description: "Punto crítico 6 - Ordinarios, escombros y llantas"},
	{Name: "7", Lat: 4.58111, Lng: -74.06871, Description: "Punto crítico 7 - Ordinarios y escombro"},
	{Name: "8", Lat: 4.58131, Lng: -74.0683, Description: "Punto crítico 8 - Ordinarios y voluminosos"},
	{Name: "9", Lat: 4.58224, Lng: -74.06815, Description: "Punto crítico 9 - Ordinarios y escombro"},
	{Name: "10", Lat: 4.58224, Lng: -74.06994, Description: "Punto crítico 10 - Ordinarios y voluminosos"},
	{Name: "11", Lat: 4.58213, Lng: -74.06958, Description: "Punto crítico 11 - Ordinarios y escombro"},
	{Name: "12", Lat: 4.58178, Lng: -74.07041, Description: "Punto crítico 12 - Ordinarios y voluminosos"},
	{Name: "13", Lat: 4.58255, Lng: -74.07025, Description: "Punto crítico 13 - Ordinarios y escombro"},
	{Name: "14", Lat: 4.5836, Lng: -74.06959, Description: "Punto crítico 14 - Ordinarios y voluminosos"},
	{Name: "15", Lat: 4.58163, Lng: -74.07131, Description: "Punto crítico 15 - Ordinarios"},
}

// DefaultIntervened names the critical points already intervened; they are drawn green.
var DefaultIntervened = []string{"1", "3", "6", "15"}

func CriticalPointMarkers(points []CriticalPoint, intervened []string) []mapview.Marker {
	markers := make([]mapview.Marker, 0, len(points))
	for _, p := range points {
		color, icon := "red", redMarkerIcon
		if slices.Contains(intervened, p.Name) {
			color, icon = "green", greenMarkerIcon
		}
		markers = append(markers, mapview.Marker{
			Name:    p.Name,
			Point:   orb.Point{p.Lng, p.Lat},
			Color:   color,
			Popup:   p.Description,
			IconURL: icon,
		})
	}
	return markers
}

// CriticalPoints draws the critical point markers and fits the map to them.
func CriticalPoints(points []CriticalPoint, intervened []string) Descriptor {
	markers := CriticalPointMarkers(points, intervened)
	return Descriptor{
		Name: PuntosCriticos,
		Load: func(context.Context) (mapview.Layer, error) {
			return mapview.NewMarkerLayer(PuntosCriticos, markers), nil
		},
		OnReady: func(m mapview.Map, h mapview.Layer) {
			if b, ok := h.Bounds(); ok {
				m.FitBounds(b, criticalPointsPadding)
			}
		},
	}
}

// KMLOverlay loads path through ld. ready, if set, runs once the document parsed.
func KMLOverlay(name, path string, ld *kml.Loader, ready func(m mapview.Map, l *kml.Layer)) Descriptor {
	d := Descriptor{
		Name: name,
		Load: func(ctx context.Context) (mapview.Layer, error) {
			return ld.Load(ctx, name, path), nil
		},
	}
	if ready != nil {
		d.OnReady = func(m mapview.Map, h mapview.Layer) {
			if l, ok := h.(*kml.Layer); ok {
				ready(m, l)
			}
		}
	}
	return d
}

// ElConsueloOverlay fits the map to the El Consuelo polygons once they load.
func ElConsueloOverlay(ld *kml.Loader, path string) Descriptor {
	return KMLOverlay(ElConsuelo, path, ld, func(m mapview.Map, l *kml.Layer) {
		if b, ok := l.Bounds(); ok {
			m.FitBounds(b, 0)
		}
	})
}

// BateriaSocialOverlay restyles the Batería social sublayers once they load.
func BateriaSocialOverlay(ld *kml.Loader, path string) Descriptor {
	return KMLOverlay(BateriaSocial, path, ld, func(_ mapview.Map, l *kml.Layer) {
		l.SetStyle(BateriaSocialStyle)
	})
}
