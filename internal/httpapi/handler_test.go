package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/dataset"
	"indicadores/dashboard-go/internal/mapview"
	"indicadores/dashboard-go/internal/refresher"
	"indicadores/dashboard-go/internal/snapshot"
	"indicadores/dashboard-go/internal/toggle"
)

type fakeStore struct {
	snap snapshot.Snapshot
	ok   bool
}

func (f fakeStore) Current() (snapshot.Snapshot, bool) { return f.snap, f.ok }

type fakeRefresher struct {
	refreshFn func(ctx context.Context) (refresher.Result, error)
}

func (f fakeRefresher) RefreshNow(ctx context.Context) (refresher.Result, error) {
	return f.refreshFn(ctx)
}

type fakeCounter struct {
	resetFn func(ctx context.Context, code, actor string) (time.Time, error)
	at      time.Time
	days    int
}

func (f fakeCounter) Reset(ctx context.Context, code, actor string) (time.Time, error) {
	return f.resetFn(ctx, code, actor)
}
func (f fakeCounter) ResetAt() time.Time { return f.at }
func (f fakeCounter) Days() int          { return f.days }

var fetchedAt = time.Date(2025, 4, 1, 15, 30, 0, 0, time.UTC)

func sampleStore() fakeStore {
	cols := []string{dataset.ColumnEntity, dataset.ColumnPopulation, dataset.ColumnEndDate, dataset.ColumnSummary}
	t := dataset.FromValues([][]string{
		cols,
		{"IDIGER", "12.500", "2025-03-01", "Jornada de limpieza"},
		{"Alcaldía Local", "30", "2025-03-15", "Recorrido"},
		{"IDIGER", "20", "", "Taller"},
	})
	return fakeStore{ok: true, snap: snapshot.Snapshot{ID: "s1", Table: t, FetchedAt: fetchedAt}}
}

func newTestHandler(d Deps) http.Handler {
	return NewHandler(zerolog.New(io.Discard), d).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestData_NoDataYet(t *testing.T) {
	h := newTestHandler(Deps{Store: fakeStore{}})
	rr := do(t, h, http.MethodGet, "/api/data", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]map[string]any
	decode(t, rr, &body)
	if body["error"]["code"] != "no_data" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestData_ReturnsDatasetInOrder(t *testing.T) {
	h := newTestHandler(Deps{Store: sampleStore()})
	rr := do(t, h, http.MethodGet, "/api/data", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Data         []json.RawMessage `json:"data"`
		ColumnsOrder []string          `json:"columns_order"`
		TotalRecords int               `json:"total_records"`
		Statistics   struct {
			TotalPopulation float64 `json:"total_population"`
			Count           int     `json:"count"`
		} `json:"statistics"`
	}
	decode(t, rr, &body)
	if body.TotalRecords != 3 || len(body.Data) != 3 {
		t.Fatalf("unexpected records: %+v", body)
	}
	if body.ColumnsOrder[0] != dataset.ColumnEntity {
		t.Fatalf("unexpected column order: %v", body.ColumnsOrder)
	}
	if body.Statistics.TotalPopulation != 12550 || body.Statistics.Count != 3 {
		t.Fatalf("unexpected statistics: %+v", body.Statistics)
	}
	if !bytes.HasPrefix(body.Data[0], []byte(`{"`+dataset.ColumnEntity+`"`)) {
		t.Fatalf("row keys should keep sheet order: %s", body.Data[0])
	}
}

func TestRefresh_Messages(t *testing.T) {
	cases := []struct {
		name   string
		res    refresher.Result
		err    error
		status int
		msg    string
	}{
		{"changed", refresher.Result{Changed: true, LastUpdate: fetchedAt}, nil, http.StatusOK, msgRefreshChanged},
		{"unchanged", refresher.Result{LastUpdate: fetchedAt}, nil, http.StatusOK, msgRefreshUnchanged},
		{"failed", refresher.Result{LastUpdate: fetchedAt}, errors.New("sheet down"), http.StatusInternalServerError, msgRefreshFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(Deps{Refresher: fakeRefresher{refreshFn: func(context.Context) (refresher.Result, error) {
				return tc.res, tc.err
			}}})
			rr := do(t, h, http.MethodPost, "/api/refresh", "")
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			var body refreshResponse
			decode(t, rr, &body)
			if body.Message != tc.msg || body.Success != (tc.err == nil) || body.Changed != tc.res.Changed {
				t.Fatalf("unexpected body: %+v", body)
			}
			if body.LastUpdate == nil || !body.LastUpdate.Equal(fetchedAt) {
				t.Fatalf("last_update should survive: %+v", body.LastUpdate)
			}
		})
	}
}

func TestIndicators_Formatted(t *testing.T) {
	h := newTestHandler(Deps{Store: sampleStore(), Counter: fakeCounter{days: 20, at: fetchedAt}})
	rr := do(t, h, http.MethodGet, "/api/indicators", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body indicatorsResponse
	decode(t, rr, &body)
	if !body.Loaded || body.Formatted.TotalPopulation != "12.550" || body.Formatted.Count != "3" {
		t.Fatalf("unexpected indicators: %+v", body)
	}
	if body.DaysSinceReset == nil || *body.DaysSinceReset != 20 {
		t.Fatalf("unexpected days since reset: %v", body.DaysSinceReset)
	}
	if body.Formatted.LastUpdate != "1/4/2025, 10:30:00 a. m." {
		t.Fatalf("unexpected last update: %q", body.Formatted.LastUpdate)
	}
}

func TestIndicators_BeforeLoad(t *testing.T) {
	h := newTestHandler(Deps{Store: fakeStore{}})
	var body indicatorsResponse
	decode(t, do(t, h, http.MethodGet, "/api/indicators", ""), &body)
	if body.Loaded || body.Count != 0 || body.Formatted.Count != "0" || body.LastUpdate != nil {
		t.Fatalf("unexpected indicators: %+v", body)
	}
}

func TestCounterReset(t *testing.T) {
	var gotCode string
	c := fakeCounter{resetFn: func(_ context.Context, code, _ string) (time.Time, error) {
		gotCode = code
		if code != "BOGOTA2025" {
			return time.Time{}, snapshot.ErrInvalidCode
		}
		return fetchedAt, nil
	}}
	h := newTestHandler(Deps{Counter: c})

	rr := do(t, h, http.MethodPost, "/api/counter/reset", `{"code":"nope"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var bad counterResetResponse
	decode(t, rr, &bad)
	if bad.Success || bad.Message != msgResetBadCode {
		t.Fatalf("unexpected body: %+v", bad)
	}

	rr = do(t, h, http.MethodPost, "/api/counter/reset", `{"code":"BOGOTA2025"}`)
	if rr.Code != http.StatusOK || gotCode != "BOGOTA2025" {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/api/counter/reset", `{"code":"x","extra":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown fields should be rejected, got %d", rr.Code)
	}
}

func TestEntityDetail(t *testing.T) {
	h := newTestHandler(Deps{Store: sampleStore()})
	rr := do(t, h, http.MethodGet, "/api/entities/IDIGER", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body entityResponse
	decode(t, rr, &body)
	if body.TotalActivities != 2 || len(body.Summary) != 1 || len(body.ActivitiesWithoutDates) != 1 {
		t.Fatalf("unexpected entity body: %+v", body)
	}
	if body.Summary[0].Activity != "Jornada de limpieza" {
		t.Fatalf("unexpected summary: %+v", body.Summary)
	}

	rr = do(t, h, http.MethodGet, "/api/entities/Alcald%C3%ADa%20Local", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("escaped entity should resolve, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/api/entities/Nadie", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestColumnValuesAndTableFilter(t *testing.T) {
	h := newTestHandler(Deps{Store: sampleStore()})

	rr := do(t, h, http.MethodGet, "/api/columns/Entidad/values", "")
	var vals struct {
		Values []string `json:"values"`
	}
	decode(t, rr, &vals)
	if len(vals.Values) != 2 || vals.Values[0] != "Alcaldía Local" {
		t.Fatalf("unexpected values: %v", vals.Values)
	}
	if rr := do(t, h, http.MethodGet, "/api/columns/Nope/values", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown column, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/table?column=Entidad&value=IDIGER", "")
	var view struct {
		Headers []struct {
			Name      string `json:"name"`
			FilterURL string `json:"filter_url"`
		} `json:"headers"`
		Rows [][]string `json:"rows"`
	}
	decode(t, rr, &view)
	if len(view.Rows) != 2 || len(view.Headers) != 4 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Headers[0].FilterURL != "/api/columns/Entidad/values" {
		t.Fatalf("entity header should carry the filter url: %+v", view.Headers[0])
	}
}

func TestExportAndCharts(t *testing.T) {
	h := newTestHandler(Deps{Store: sampleStore()})

	rr := do(t, h, http.MethodGet, "/api/export.xlsx", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "application/vnd.openxmlformats") {
		t.Fatalf("unexpected export response %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Fatalf("xlsx should be a zip archive")
	}

	for _, p := range []string{"/api/charts/participacion.png", "/api/charts/diario.png"} {
		rr := do(t, h, http.MethodGet, p, "")
		if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("%s: unexpected response %d %q", p, rr.Code, rr.Header().Get("Content-Type"))
		}
	}

	rr = do(t, h, http.MethodGet, "/api/charts/diario", "")
	var daily struct {
		Bars []struct {
			Date string `json:"date"`
		} `json:"bars"`
	}
	decode(t, rr, &daily)
	if len(daily.Bars) != 2 {
		t.Fatalf("unexpected bars: %+v", daily)
	}
}

func TestOverlays_SetControl(t *testing.T) {
	sw := toggle.New(zerolog.New(io.Discard))
	if err := sw.Register(toggle.PuntosCriticos, false); err != nil {
		t.Fatal(err)
	}
	enabled := 0
	if err := sw.Bind(toggle.PuntosCriticos, func() { enabled++ }, nil); err != nil {
		t.Fatal(err)
	}
	h := newTestHandler(Deps{Toggles: sw})

	rr := do(t, h, http.MethodPut, "/api/overlays/"+toggle.PuntosCriticos, `{"checked":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body setOverlayResponse
	decode(t, rr, &body)
	if !body.Changed || !body.Checked || enabled != 1 {
		t.Fatalf("unexpected result %+v (enabled=%d)", body, enabled)
	}

	decode(t, do(t, h, http.MethodPut, "/api/overlays/"+toggle.PuntosCriticos, `{"checked":true}`), &body)
	if body.Changed || enabled != 1 {
		t.Fatalf("re-checking must not fire again: %+v (enabled=%d)", body, enabled)
	}

	if rr := do(t, h, http.MethodPut, "/api/overlays/toggle-nope", `{"checked":true}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	var list overlaysResponse
	decode(t, do(t, h, http.MethodGet, "/api/overlays", ""), &list)
	if len(list.Controls) != 1 || !list.Controls[0].Checked {
		t.Fatalf("unexpected controls: %+v", list.Controls)
	}
}

func TestMapStateAndFeed(t *testing.T) {
	canvas := mapview.NewCanvas(orb.Point{-74.07, 4.58}, 16)
	h := newTestHandler(Deps{Canvas: canvas})

	if rr := do(t, newTestHandler(Deps{}), http.MethodGet, "/api/map", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without canvas, got %d", rr.Code)
	}

	srv := httptest.NewServer(h)
	defer srv.Close()

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws/map", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	// The server subscribes after the upgrade; keep publishing until the first event arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				canvas.FitBounds(orb.Bound{Min: orb.Point{-74.08, 4.57}, Max: orb.Point{-74.06, 4.59}}, 10)
			}
		}
	}()

	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev mapview.Event
	if err := c.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != mapview.EventViewport {
		t.Fatalf("unexpected event: %+v", ev)
	}

	rr := do(t, h, http.MethodGet, "/api/map", "")
	var st mapview.State
	decode(t, rr, &st)
	if st.Viewport.Bounds == nil || st.Viewport.Padding != 10 {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestPages(t *testing.T) {
	sw := toggle.New(zerolog.New(io.Discard))
	_ = sw.Register(toggle.PuntosCriticos, false)
	h := newTestHandler(Deps{Store: sampleStore(), Toggles: sw})

	rr := do(t, h, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `id="personas-impactadas"`) {
		t.Fatalf("unexpected index response %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Jornada de limpieza") {
		t.Fatalf("index should render the table")
	}

	rr = do(t, h, http.MethodGet, "/static/data/ELCONSUELO.kml", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "<kml") {
		t.Fatalf("expected kml asset, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/el-consuelo", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "no está configurada") {
		t.Fatalf("unexpected survey page %d", rr.Code)
	}
}

func TestReadyz(t *testing.T) {
	if rr := do(t, newTestHandler(Deps{Store: fakeStore{}}), http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before load, got %d", rr.Code)
	}
	if rr := do(t, newTestHandler(Deps{Store: sampleStore()}), http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 once loaded, got %d", rr.Code)
	}
}
