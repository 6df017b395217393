package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"indicadores/dashboard-go/internal/overlay"
	"indicadores/dashboard-go/internal/toggle"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (h *Handler) handleMapState(w http.ResponseWriter, r *http.Request) {
	if h.d.Canvas == nil {
		h.writeError(w, http.StatusServiceUnavailable, "map_unavailable", "map not initialized", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.d.Canvas.State())
}

type overlaysResponse struct {
	Controls []toggle.Control `json:"controls"`
	Overlays []overlay.Status `json:"overlays"`
}

func (h *Handler) handleOverlays(w http.ResponseWriter, r *http.Request) {
	resp := overlaysResponse{Controls: []toggle.Control{}, Overlays: []overlay.Status{}}
	if h.d.Toggles != nil {
		resp.Controls = h.d.Toggles.Controls()
	}
	if h.d.Overlays != nil {
		resp.Overlays = h.d.Overlays.Status()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type setOverlayRequest struct {
	Checked bool `json:"checked"`
}

type setOverlayResponse struct {
	ID      string `json:"id"`
	Checked bool   `json:"checked"`
	Changed bool   `json:"changed"`
}

// handleSetOverlay flips a dashboard checkbox. Bound overlays react asynchronously; their
// progress shows up in GET /api/overlays and on the map feed.
func (h *Handler) handleSetOverlay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "control")
	var req setOverlayRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if h.d.Toggles == nil {
		h.unavailable(w, "toggles")
		return
	}

	changed, err := h.d.Toggles.Set(id, req.Checked)
	if errors.Is(err, toggle.ErrUnknownControl) {
		h.writeError(w, http.StatusNotFound, "not_found", "unknown control", map[string]any{"id": id})
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "toggle_failed", err.Error(), nil)
		return
	}
	h.writeJSON(w, http.StatusOK, setOverlayResponse{ID: id, Checked: req.Checked, Changed: changed})
}

// handleMapFeed streams canvas events as JSON text frames until the client goes away.
func (h *Handler) handleMapFeed(w http.ResponseWriter, r *http.Request) {
	if h.d.Canvas == nil {
		h.writeError(w, http.StatusServiceUnavailable, "map_unavailable", "map not initialized", nil)
		return
	}
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer c.Close()

	events, unsubscribe := h.d.Canvas.Subscribe()
	defer unsubscribe()

	// The read loop only handles control frames and notices disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.SetReadLimit(1024)
		_ = c.SetReadDeadline(time.Now().Add(wsPongWait))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.WriteJSON(ev); err != nil {
				h.log.Debug().Err(err).Msg("ws write failed")
				return
			}
		case <-ping.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
