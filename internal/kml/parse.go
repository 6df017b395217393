// Package kml reads KML overlays into orb geometries and loads them asynchronously as map
// layers.
package kml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Placemark is one named feature. Folder is the slash-joined path of enclosing Folder and
// Document names.
type Placemark struct {
	Name        string
	Description string
	Folder      string
	Geometry    orb.Geometry
}

type xmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type xmlPolygon struct {
	Outer xmlCoords   `xml:"outerBoundaryIs>LinearRing"`
	Inner []xmlCoords `xml:"innerBoundaryIs>LinearRing"`
}

type xmlMulti struct {
	Points   []xmlCoords  `xml:"Point"`
	Lines    []xmlCoords  `xml:"LineString"`
	Polygons []xmlPolygon `xml:"Polygon"`
	Multi    []xmlMulti   `xml:"MultiGeometry"`
}

type xmlPlacemark struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description"`
	Point       *xmlCoords  `xml:"Point"`
	LineString  *xmlCoords  `xml:"LineString"`
	Polygon     *xmlPolygon `xml:"Polygon"`
	Multi       *xmlMulti   `xml:"MultiGeometry"`
}

// Parse streams the document and decodes each Placemark whole. Placemarks without geometry
// are skipped; malformed coordinates fail the parse.
func Parse(r io.Reader) ([]Placemark, error) {
	dec := xml.NewDecoder(r)

	var (
		out     []Placemark
		folders []string
		// whether each open container already took its <name>
		named []bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("kml: decode: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "Folder", "Document":
				folders = append(folders, "")
				named = append(named, false)
			case "name":
				if len(named) > 0 && !named[len(named)-1] {
					var name string
					if err := dec.DecodeElement(&name, &el); err != nil {
						return nil, fmt.Errorf("kml: decode folder name: %w", err)
					}
					folders[len(folders)-1] = strings.TrimSpace(name)
					named[len(named)-1] = true
				}
			case "Placemark":
				var raw xmlPlacemark
				if err := dec.DecodeElement(&raw, &el); err != nil {
					return nil, fmt.Errorf("kml: decode placemark: %w", err)
				}
				pm, ok, err := convert(raw)
				if err != nil {
					return nil, fmt.Errorf("kml: placemark %q: %w", raw.Name, err)
				}
				if ok {
					pm.Folder = folderPath(folders)
					out = append(out, pm)
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "Folder", "Document":
				if len(folders) > 0 {
					folders = folders[:len(folders)-1]
					named = named[:len(named)-1]
				}
			}
		}
	}
	return out, nil
}

func folderPath(folders []string) string {
	parts := make([]string, 0, len(folders))
	for _, f := range folders {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, "/")
}

func convert(raw xmlPlacemark) (Placemark, bool, error) {
	pm := Placemark{
		Name:        strings.TrimSpace(raw.Name),
		Description: strings.TrimSpace(raw.Description),
	}

	var (
		g   orb.Geometry
		err error
	)
	switch {
	case raw.Point != nil:
		g, err = point(raw.Point.Coordinates)
	case raw.LineString != nil:
		g, err = lineString(raw.LineString.Coordinates)
	case raw.Polygon != nil:
		g, err = polygon(*raw.Polygon)
	case raw.Multi != nil:
		g, err = collection(*raw.Multi)
	default:
		return pm, false, nil
	}
	if err != nil {
		return pm, false, err
	}
	pm.Geometry = g
	return pm, true, nil
}

func point(s string) (orb.Point, error) {
	pts, err := parseCoordinates(s)
	if err != nil {
		return orb.Point{}, err
	}
	if len(pts) != 1 {
		return orb.Point{}, fmt.Errorf("point needs one coordinate, got %d", len(pts))
	}
	return pts[0], nil
}

func lineString(s string) (orb.LineString, error) {
	pts, err := parseCoordinates(s)
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("line string needs two coordinates, got %d", len(pts))
	}
	return orb.LineString(pts), nil
}

func ring(s string) (orb.Ring, error) {
	pts, err := parseCoordinates(s)
	if err != nil {
		return nil, err
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("ring needs three coordinates, got %d", len(pts))
	}
	r := orb.Ring(pts)
	if !r.Closed() {
		r = append(r, r[0])
	}
	return r, nil
}

func polygon(p xmlPolygon) (orb.Polygon, error) {
	outer, err := ring(p.Outer.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("outer boundary: %w", err)
	}
	poly := orb.Polygon{outer}
	for i, in := range p.Inner {
		r, err := ring(in.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("inner boundary %d: %w", i, err)
		}
		poly = append(poly, r)
	}
	return poly, nil
}

func collection(m xmlMulti) (orb.Collection, error) {
	var out orb.Collection
	for _, p := range m.Points {
		g, err := point(p.Coordinates)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	for _, l := range m.Lines {
		g, err := lineString(l.Coordinates)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	for _, p := range m.Polygons {
		g, err := polygon(p)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	for _, nested := range m.Multi {
		g, err := collection(nested)
		if err != nil {
			return nil, err
		}
		out = append(out, g...)
	}
	if len(out) == 0 {
		return nil, errors.New("empty MultiGeometry")
	}
	return out, nil
}

// parseCoordinates reads whitespace separated "lon,lat[,alt]" tuples.
func parseCoordinates(s string) ([]orb.Point, error) {
	fields := strings.Fields(s)
	pts := make([]orb.Point, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("bad coordinate %q", f)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude %q: %w", parts[0], err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude %q: %w", parts[1], err)
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts, nil
}
