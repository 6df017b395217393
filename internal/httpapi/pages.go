package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"indicadores/dashboard-go/internal/dataset"
	"indicadores/dashboard-go/internal/table"
	"indicadores/dashboard-go/internal/web"
)

const surveyTimeout = 30 * time.Second

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	p := web.Page{
		Loading: true,
		Center:  h.d.MapCenter,
		Zoom:    h.d.MapZoom,
	}
	if h.d.Toggles != nil {
		p.Controls = h.d.Toggles.Controls()
	}
	if h.d.Counter != nil {
		p.Indicators.DaysSinceReset = h.d.Counter.Days()
	}
	p.Indicators.PersonasImpactadas = "0"
	p.Indicators.ActividadesRealizadas = "0"

	if h.d.Store != nil {
		if snap, ok := h.d.Store.Current(); ok {
			ind := dataset.Aggregate(snap.Table.Rows)
			p.Loading = false
			p.LastUpdate = h.d.Formatter.Timestamp(snap.FetchedAt)
			p.Indicators.PersonasImpactadas = h.d.Formatter.Number(ind.TotalPopulation)
			p.Indicators.ActividadesRealizadas = h.d.Formatter.Int(int64(ind.Count))

			var err error
			if p, err = p.WithTable(table.Render(snap.Table.Rows, snap.Table.ColumnOrder())); err != nil {
				h.log.Error().Err(err).Msg("render table failed")
				p.Error = "Error al mostrar la tabla de datos"
			}
		}
	}
	h.writeHTML(w, func(buf *bytes.Buffer) error { return web.RenderDashboard(buf, p) })
}

// survey fetches the El Consuelo sheet on every call, like the page it feeds.
func (h *Handler) survey(ctx context.Context) ([]dataset.Row, dataset.Survey, error) {
	ctx, cancel := context.WithTimeout(ctx, surveyTimeout)
	defer cancel()
	t, err := h.d.Survey.Fetch(ctx)
	if err != nil {
		return nil, dataset.Survey{}, err
	}
	questions := h.d.SurveyQuestions
	if len(questions) == 0 {
		questions = dataset.DefaultSurveyQuestions
	}
	return t.Rows, dataset.SurveyCounts(t.Rows, questions), nil
}

func (h *Handler) handleSurveyData(w http.ResponseWriter, r *http.Request) {
	if h.d.Survey == nil {
		h.unavailable(w, "survey source")
		return
	}
	rows, s, err := h.survey(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("survey fetch failed")
		h.writeError(w, http.StatusBadGateway, "survey_unavailable", "failed to read survey sheet", map[string]any{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":    rows,
		"total":   len(rows),
		"summary": s,
	})
}

func (h *Handler) handleSurveyPage(w http.ResponseWriter, r *http.Request) {
	var p web.SurveyPage
	switch {
	case h.d.Survey == nil:
		p.Error = "La encuesta no está configurada"
	default:
		_, s, err := h.survey(r.Context())
		if err != nil {
			h.log.Error().Err(err).Msg("survey fetch failed")
			p.Error = "No fue posible cargar la encuesta"
		}
		p.Survey = s
	}
	h.writeHTML(w, func(buf *bytes.Buffer) error { return web.RenderSurvey(buf, p) })
}

func (h *Handler) writeHTML(w http.ResponseWriter, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.log.Error().Err(err).Msg("render page failed")
		http.Error(w, "Error interno del servidor", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
