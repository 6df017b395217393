package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/mapview"
	"indicadores/dashboard-go/internal/metrics"
	"indicadores/dashboard-go/internal/overlay"
	"indicadores/dashboard-go/internal/refresher"
	"indicadores/dashboard-go/internal/sheets"
	"indicadores/dashboard-go/internal/snapshot"
	"indicadores/dashboard-go/internal/toggle"
	"indicadores/dashboard-go/internal/web"
)

type DataStore interface {
	Current() (snapshot.Snapshot, bool)
}

type Refresher interface {
	RefreshNow(ctx context.Context) (refresher.Result, error)
}

type Counter interface {
	Reset(ctx context.Context, code, actor string) (time.Time, error)
	ResetAt() time.Time
	Days() int
}

type Overlays interface {
	Status() []overlay.Status
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Any of them may be nil; the routes that need a
// missing one answer 503.
type Deps struct {
	Store     DataStore
	Refresher Refresher
	Counter   Counter
	Toggles   *toggle.Switchboard
	Overlays  Overlays
	Canvas    *mapview.Canvas
	// DB is only pinged by /readyz.
	DB      Pinger
	Metrics *metrics.Metrics

	Survey          sheets.Source
	SurveyQuestions []string

	Static    fs.FS
	Formatter *web.Formatter
	MapCenter orb.Point
	MapZoom   int
}

type Handler struct {
	log zerolog.Logger
	d   Deps
}

func NewHandler(log zerolog.Logger, d Deps) *Handler {
	if d.Formatter == nil {
		d.Formatter = web.NewFormatter()
	}
	if d.Static == nil {
		d.Static = web.Static()
	}
	return &Handler{log: log, d: d}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Handle("/metrics", h.d.Metrics.Handler())

	// Long-lived, so outside the request timeout and compression.
	r.Get("/api/ws/map", h.handleMapFeed)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		// Pages
		r.Get("/", h.handleIndex)
		r.Get("/el-consuelo", h.handleSurveyPage)
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(h.d.Static))))

		// API
		r.Route("/api", func(r chi.Router) {
			r.Use(gzipped)

			r.Get("/data", h.handleData)
			r.Get("/refresh", h.handleRefresh)
			r.Post("/refresh", h.handleRefresh)
			r.Get("/indicators", h.handleIndicators)
			r.Post("/counter/reset", h.handleCounterReset)

			r.Get("/entities", h.handleEntities)
			r.Get("/entities/{entity}", h.handleEntity)
			r.Get("/months", h.handleMonths)
			r.Get("/columns/{column}/values", h.handleColumnValues)
			r.Get("/table", h.handleTable)
			r.Get("/export.xlsx", h.handleExport)

			r.Route("/charts", func(r chi.Router) {
				r.Get("/participacion", h.handleParticipacion)
				r.Get("/participacion.png", h.handleParticipacionPNG)
				r.Get("/diario", h.handleDiario)
				r.Get("/diario.png", h.handleDiarioPNG)
			})

			r.Get("/el-consuelo/data", h.handleSurveyData)

			r.Get("/map", h.handleMapState)
			r.Route("/overlays", func(r chi.Router) {
				r.Get("/", h.handleOverlays)
				r.Put("/{control}", h.handleSetOverlay)
			})
		})
	})

	return r
}

func gzipped(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		h.d.Metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))
		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) unavailable(w http.ResponseWriter, what string) {
	h.writeError(w, http.StatusServiceUnavailable, "unavailable", what+" not configured", nil)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleReadyZ is ready once a dataset is loaded and, when configured, the database answers.
func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.d.DB != nil {
		if err := h.d.DB.Ping(ctx); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
			return
		}
	}
	if h.d.Store == nil {
		h.unavailable(w, "data store")
		return
	}
	if _, ok := h.d.Store.Current(); !ok {
		h.writeError(w, http.StatusServiceUnavailable, "no_data", "dataset not loaded yet", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
