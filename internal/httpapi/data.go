package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"indicadores/dashboard-go/internal/charts"
	"indicadores/dashboard-go/internal/dataset"
	"indicadores/dashboard-go/internal/export"
	"indicadores/dashboard-go/internal/snapshot"
	"indicadores/dashboard-go/internal/table"
)

const (
	msgRefreshChanged   = "Datos actualizados correctamente"
	msgRefreshUnchanged = "No hubo cambios en los datos"
	msgRefreshFailed    = "Error al actualizar datos"
	msgResetOK          = "Contador reseteado exitosamente"
	msgResetBadCode     = "Código incorrecto"

	chartWidth  = 800
	chartHeight = 480
)

// current writes the error response itself when no dataset is available.
func (h *Handler) current(w http.ResponseWriter) (snapshot.Snapshot, bool) {
	if h.d.Store == nil {
		h.unavailable(w, "data store")
		return snapshot.Snapshot{}, false
	}
	snap, ok := h.d.Store.Current()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "no_data", "No hay datos disponibles", nil)
		return snapshot.Snapshot{}, false
	}
	return snap, true
}

type statistics struct {
	dataset.Indicators
	Dates dataset.NormalizeReport `json:"dates"`
}

type dataResponse struct {
	Data         []dataset.Row      `json:"data"`
	ColumnsOrder []string           `json:"columns_order"`
	LastUpdate   time.Time          `json:"last_update"`
	TotalRecords int                `json:"total_records"`
	Statistics   statistics         `json:"statistics"`
	Validation   dataset.Validation `json:"validation"`
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, dataResponse{
		Data:         snap.Table.Rows,
		ColumnsOrder: snap.Table.ColumnOrder(),
		LastUpdate:   snap.FetchedAt,
		TotalRecords: len(snap.Table.Rows),
		Statistics: statistics{
			Indicators: dataset.Aggregate(snap.Table.Rows),
			Dates:      snap.Report,
		},
		Validation: dataset.ValidateRequired(snap.Table, dataset.DefaultRequiredFields),
	})
}

type refreshResponse struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	Changed    bool       `json:"changed"`
	LastUpdate *time.Time `json:"last_update"`
	Error      string     `json:"error,omitempty"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.d.Refresher == nil {
		h.unavailable(w, "refresher")
		return
	}
	res, err := h.d.Refresher.RefreshNow(r.Context())

	resp := refreshResponse{Success: err == nil, Changed: res.Changed}
	if !res.LastUpdate.IsZero() {
		resp.LastUpdate = &res.LastUpdate
	}
	status := http.StatusOK
	switch {
	case err != nil:
		h.log.Error().Err(err).Msg("manual refresh failed")
		status = http.StatusInternalServerError
		resp.Message = msgRefreshFailed
		resp.Error = err.Error()
	case res.Changed:
		resp.Message = msgRefreshChanged
	default:
		resp.Message = msgRefreshUnchanged
	}
	h.writeJSON(w, status, resp)
}

type indicatorsResponse struct {
	dataset.Indicators
	Loaded         bool       `json:"loaded"`
	LastUpdate     *time.Time `json:"last_update"`
	DaysSinceReset *int       `json:"days_since_reset,omitempty"`
	CounterResetAt *time.Time `json:"counter_reset_at,omitempty"`
	Formatted      formatted  `json:"formatted"`
}

type formatted struct {
	TotalPopulation string `json:"total_population"`
	Count           string `json:"count"`
	LastUpdate      string `json:"last_update"`
}

// handleIndicators answers zeros before the first load so the page can still render.
func (h *Handler) handleIndicators(w http.ResponseWriter, r *http.Request) {
	var resp indicatorsResponse
	if h.d.Store != nil {
		if snap, ok := h.d.Store.Current(); ok {
			resp.Indicators = dataset.Aggregate(snap.Table.Rows)
			resp.Loaded = true
			resp.LastUpdate = &snap.FetchedAt
			resp.Formatted.LastUpdate = h.d.Formatter.Timestamp(snap.FetchedAt)
		}
	}
	resp.Formatted.TotalPopulation = h.d.Formatter.Number(resp.TotalPopulation)
	resp.Formatted.Count = h.d.Formatter.Int(int64(resp.Count))

	if h.d.Counter != nil {
		days, at := h.d.Counter.Days(), h.d.Counter.ResetAt()
		resp.DaysSinceReset, resp.CounterResetAt = &days, &at
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type counterResetRequest struct {
	Code string `json:"code"`
}

type counterResetResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

func (h *Handler) handleCounterReset(w http.ResponseWriter, r *http.Request) {
	var req counterResetRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if h.d.Counter == nil {
		h.unavailable(w, "counter")
		return
	}

	at, err := h.d.Counter.Reset(r.Context(), req.Code, r.RemoteAddr)
	switch {
	case errors.Is(err, snapshot.ErrInvalidCode):
		h.writeJSON(w, http.StatusBadRequest, counterResetResponse{Message: msgResetBadCode})
	case err != nil:
		h.log.Error().Err(err).Msg("counter reset failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to reset counter", nil)
	default:
		h.writeJSON(w, http.StatusOK, counterResetResponse{Success: true, Message: msgResetOK, ResetAt: &at})
	}
}

func (h *Handler) handleEntities(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, dataset.EntityStats(snap.Table.Rows))
}

type activitySummary struct {
	Activity string `json:"activity"`
	Date     string `json:"date"`
}

type entityResponse struct {
	Entity                 string              `json:"entity"`
	TotalActivities        int                 `json:"total_activities"`
	TotalPopulation        float64             `json:"total_population"`
	Summary                []activitySummary   `json:"summary"`
	ActivitiesWithoutDates []dataset.Row       `json:"activities_without_dates"`
	Months                 []dataset.MonthStat `json:"months"`
}

func (h *Handler) handleEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := url.PathUnescape(chi.URLParam(r, "entity"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_entity", "entity is not a valid path segment", nil)
		return
	}
	snap, ok := h.current(w)
	if !ok {
		return
	}
	rows := dataset.FilterEquals(snap.Table.Rows, dataset.ColumnEntity, entity)
	if len(rows) == 0 {
		h.writeError(w, http.StatusNotFound, "not_found", "entity not found", map[string]any{"entity": entity})
		return
	}

	resp := entityResponse{
		Entity:                 entity,
		TotalActivities:        len(rows),
		TotalPopulation:        dataset.Aggregate(rows).TotalPopulation,
		Summary:                []activitySummary{},
		ActivitiesWithoutDates: []dataset.Row{},
		Months:                 dataset.MonthStats(rows),
	}
	for _, row := range rows {
		date, _ := row.Lookup(dataset.ColumnEndDate)
		if date == "" {
			resp.ActivitiesWithoutDates = append(resp.ActivitiesWithoutDates, row)
			continue
		}
		activity, _ := row.Lookup(dataset.ColumnSummary)
		if activity == "" {
			activity = "Sin descripción"
		}
		resp.Summary = append(resp.Summary, activitySummary{Activity: activity, Date: date})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMonths(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, dataset.MonthStats(snap.Table.Rows))
}

func (h *Handler) handleColumnValues(w http.ResponseWriter, r *http.Request) {
	column, err := url.PathUnescape(chi.URLParam(r, "column"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_column", "column is not a valid path segment", nil)
		return
	}
	snap, ok := h.current(w)
	if !ok {
		return
	}
	if !slices.Contains(snap.Table.ColumnOrder(), column) {
		h.writeError(w, http.StatusNotFound, "not_found", "unknown column", map[string]any{"column": column})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"column": column,
		"values": dataset.DistinctValues(snap.Table.Rows, column),
	})
}

// filteredView renders the current rows, narrowed by the optional column/value query.
func (h *Handler) filteredView(w http.ResponseWriter, r *http.Request) (table.View, bool) {
	snap, ok := h.current(w)
	if !ok {
		return table.View{}, false
	}
	rows := snap.Table.Rows
	if col, val := r.URL.Query().Get("column"), r.URL.Query().Get("value"); col != "" && val != "" {
		rows = dataset.FilterEquals(rows, col, val)
	}
	return table.Render(rows, snap.Table.ColumnOrder()), true
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	v, ok := h.filteredView(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	v, ok := h.filteredView(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, v); err != nil {
		h.log.Error().Err(err).Msg("xlsx export failed")
		h.writeError(w, http.StatusInternalServerError, "export_failed", "failed to build spreadsheet", nil)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="indicadores_santa_fe.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleParticipacion(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, charts.Participacion(snap.Table.Rows))
}

func (h *Handler) handleDiario(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, charts.Diario(snap.Table.Rows))
}

func (h *Handler) handleParticipacionPNG(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	err := charts.RenderParticipacion(&buf, charts.Participacion(snap.Table.Rows), chartHeight, chartHeight)
	h.writePNG(w, buf.Bytes(), err)
}

func (h *Handler) handleDiarioPNG(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	err := charts.RenderDiario(&buf, charts.Diario(snap.Table.Rows), chartWidth, chartHeight)
	h.writePNG(w, buf.Bytes(), err)
}

func (h *Handler) writePNG(w http.ResponseWriter, img []byte, err error) {
	switch {
	case errors.Is(err, charts.ErrNoData):
		h.writeError(w, http.StatusNotFound, "no_data", "nothing to plot", nil)
	case err != nil:
		h.log.Error().Err(err).Msg("chart render failed")
		h.writeError(w, http.StatusInternalServerError, "chart_failed", "failed to render chart", nil)
	default:
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(img)
	}
}
