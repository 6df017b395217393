// Package web renders the dashboard pages and serves their static assets.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/paulmach/orb"

	"indicadores/dashboard-go/internal/dataset"
	"indicadores/dashboard-go/internal/table"
	"indicadores/dashboard-go/internal/toggle"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static is the embedded asset tree served under /static/ (scripts, styles, KML overlays).
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

var controlLabels = map[string]string{
	toggle.PuntosCriticos:     "Puntos críticos",
	toggle.PuntosIntervenidos: "Puntos intervenidos",
	toggle.BateriaSocial:      "Batería social",
	toggle.ElConsuelo:         "Barrio El Consuelo",
}

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"label": func(id string) string {
		if l, ok := controlLabels[id]; ok {
			return l
		}
		return id
	},
}).ParseFS(templateFS, "templates/*.html"))

// Indicators are the headline figures already formatted for display.
type Indicators struct {
	PersonasImpactadas    string
	ActividadesRealizadas string
	DaysSinceReset        int
}

type Page struct {
	Title      string
	Indicators Indicators
	LastUpdate string
	// Loading is set while no dataset has been fetched yet.
	Loading  bool
	Error    string
	Controls []toggle.Control
	Center   orb.Point
	Zoom     int

	HasTable     bool
	TableHeaders template.HTML
	TableBody    template.HTML
}

// WithTable fills the table fragments from a rendered view.
func (p Page) WithTable(v table.View) (Page, error) {
	h, err := v.HeadersHTML()
	if err != nil {
		return p, fmt.Errorf("web: table headers: %w", err)
	}
	b, err := v.BodyHTML()
	if err != nil {
		return p, fmt.Errorf("web: table body: %w", err)
	}
	p.HasTable = len(v.Headers) > 0
	p.TableHeaders, p.TableBody = h, b
	return p, nil
}

func RenderDashboard(w io.Writer, p Page) error {
	if p.Title == "" {
		p.Title = "Indicadores Santa Fe"
	}
	return pages.ExecuteTemplate(w, "index.html", p)
}

type SurveyPage struct {
	Title  string
	Error  string
	Survey dataset.Survey
}

func RenderSurvey(w io.Writer, p SurveyPage) error {
	if p.Title == "" {
		p.Title = "Encuesta barrio El Consuelo"
	}
	return pages.ExecuteTemplate(w, "el_consuelo.html", p)
}
