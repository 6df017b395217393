// Package charts computes the dashboard chart series and renders them as PNG images.
package charts

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"indicadores/dashboard-go/internal/dataset"
)

var ErrNoData = errors.New("charts: no data to plot")

const (
	colorAlcaldia = "#FF6B6B"
	colorDefault  = "#4ECDC4"
	noEntity      = "Sin entidad"
	topEntities   = 3
)

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var monthColors = map[string]string{
	"marzo":      "#FF6B6B",
	"abril":      "#4ECDC4",
	"mayo":       "#45B7D1",
	"junio":      "#96CEB4",
	"julio":      "#FFEAA7",
	"agosto":     "#DDA0DD",
	"septiembre": "#98D8C8",
	"octubre":    "#F7DC6F",
	"noviembre":  "#BB8FCE",
	"diciembre":  "#85C1E9",
}

func MonthName(t time.Time) string { return monthNames[t.Month()-1] }

// MonthColor is the bar color for dates in t's month; months without one use the default.
func MonthColor(t time.Time) string {
	if c, ok := monthColors[MonthName(t)]; ok {
		return c
	}
	return colorDefault
}

func isAlcaldia(entity string) bool { return strings.Contains(entity, "Alcaldía") }

type Slice struct {
	Entity  string  `json:"entity"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

type EntityCount struct {
	Entity string `json:"entity"`
	Count  int    `json:"count"`
}

type Participation struct {
	Slices []Slice       `json:"slices"`
	Top    []EntityCount `json:"top_entities"`
	Total  int           `json:"total"`
}

// Participacion shares activities per entity, most active first. Alcaldía slices are red.
func Participacion(rows []dataset.Row) Participation {
	counts := map[string]int{}
	for _, r := range rows {
		e := strings.TrimSpace(r.Value(dataset.ColumnEntity))
		if e == "" {
			e = noEntity
		}
		counts[e]++
	}
	ranked := make([]EntityCount, 0, len(counts))
	for e, n := range counts {
		ranked = append(ranked, EntityCount{Entity: e, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Entity < ranked[j].Entity
	})

	p := Participation{Total: len(rows), Slices: make([]Slice, 0, len(ranked))}
	for _, ec := range ranked {
		color := colorDefault
		if isAlcaldia(ec.Entity) {
			color = colorAlcaldia
		}
		p.Slices = append(p.Slices, Slice{
			Entity:  ec.Entity,
			Count:   ec.Count,
			Percent: float64(ec.Count) / float64(len(rows)) * 100,
			Color:   color,
		})
	}
	p.Top = top(ranked)
	return p
}

// top keeps the three most active entities; an Alcaldía among them that is not first is moved
// to second place.
func top(ranked []EntityCount) []EntityCount {
	out := make([]EntityCount, 0, topEntities)
	alcaldiaSeen := false
	for i, ec := range ranked {
		if i == topEntities {
			break
		}
		if isAlcaldia(ec.Entity) && !alcaldiaSeen {
			alcaldiaSeen = true
			if len(out) > 0 {
				out = slices.Insert(out, 1, ec)
				continue
			}
		}
		out = append(out, ec)
	}
	return out
}

type Bar struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

type LegendEntry struct {
	Month string `json:"month"`
	Color string `json:"color"`
}

type Daily struct {
	Bars   []Bar         `json:"bars"`
	Legend []LegendEntry `json:"legend"`
}

// Diario counts activities per valid end date, colored by month.
func Diario(rows []dataset.Row) Daily {
	days := dataset.DailyCounts(rows)
	d := Daily{Bars: make([]Bar, 0, len(days))}
	seen := map[string]bool{}
	for _, dc := range days {
		t, ok := dataset.ParseDate(dc.Date)
		if !ok {
			continue
		}
		d.Bars = append(d.Bars, Bar{Date: dc.Date, Count: dc.Count, Color: MonthColor(t)})

		name := MonthName(t)
		if c, ok := monthColors[name]; ok && !seen[name] {
			seen[name] = true
			d.Legend = append(d.Legend, LegendEntry{Month: strings.ToUpper(name[:1]) + name[1:], Color: c})
		}
	}
	return d
}

func color(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

// RenderParticipacion draws the participation donut as PNG.
func RenderParticipacion(w io.Writer, p Participation, width, height int) error {
	if len(p.Slices) == 0 {
		return ErrNoData
	}
	values := make([]chart.Value, 0, len(p.Slices))
	for _, s := range p.Slices {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%.1f%%", s.Percent),
			Value: float64(s.Count),
			Style: chart.Style{
				FillColor:   color(s.Color),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
		})
	}
	donut := chart.DonutChart{
		Width:  width,
		Height: height,
		Values: values,
	}
	if err := donut.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("charts: render participacion: %w", err)
	}
	return nil
}

// RenderDiario draws the activities-per-day bars as PNG. The canvas widens with the number of
// days.
func RenderDiario(w io.Writer, d Daily, width, height int) error {
	if len(d.Bars) == 0 {
		return ErrNoData
	}
	const barWidth, barSpacing = 14, 4
	if need := 120 + len(d.Bars)*(barWidth+barSpacing); need > width {
		width = need
	}

	maxCount := 0
	bars := make([]chart.Value, 0, len(d.Bars))
	for _, b := range d.Bars {
		maxCount = max(maxCount, b.Count)
		label := b.Date
		if t, ok := dataset.ParseDate(b.Date); ok {
			label = t.Format("02/01")
		}
		bars = append(bars, chart.Value{
			Label: label,
			Value: float64(b.Count),
			Style: chart.Style{FillColor: color(b.Color), StrokeColor: color(b.Color)},
		})
	}
	// Anchored at zero: a range derived from equal counts is empty and cannot render.
	yRange := &chart.ContinuousRange{Min: 0, Max: float64(maxCount + 1)}
	bc := chart.BarChart{
		Title:      "Actividades por Día",
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Bars:       bars,
		YAxis:      chart.YAxis{Range: yRange},
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("charts: render diario: %w", err)
	}
	return nil
}
