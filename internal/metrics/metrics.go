package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "indicadores"

// Metrics exposes dashboard metrics for Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	refreshRuns         *prometheus.CounterVec
	refreshRunDuration  prometheus.Histogram
	datasetRows         prometheus.Gauge
	overlayOps          *prometheus.CounterVec
	mapReadyAttempts    prometheus.Gauge
}

// New creates a fresh registry with the HTTP, refresh and overlay metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by the dashboard",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the dashboard",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	refreshRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sheet_refresh_runs_total",
		Help:      "Sheet refresh runs by outcome (changed, unchanged, failed)",
	}, []string{"outcome"})

	refreshRunDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sheet_refresh_duration_seconds",
		Help:      "Duration of sheet refresh runs from fetch to store",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	datasetRows := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dataset_rows",
		Help:      "Rows in the current activity dataset",
	})

	overlayOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "overlay_operations_total",
		Help:      "Overlay attach/detach/load operations by overlay and result",
	}, []string{"overlay", "op", "result"})

	mapReadyAttempts := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "map_ready_attempts",
		Help:      "Probe attempts the last map readiness wait took",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		refreshRuns,
		refreshRunDuration,
		datasetRows,
		overlayOps,
		mapReadyAttempts,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		refreshRuns:         refreshRuns,
		refreshRunDuration:  refreshRunDuration,
		datasetRows:         datasetRows,
		overlayOps:          overlayOps,
		mapReadyAttempts:    mapReadyAttempts,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveRefresh records one refresh run.
func (m *Metrics) ObserveRefresh(outcome string, rows int, duration time.Duration) {
	if m == nil {
		return
	}
	m.refreshRuns.WithLabelValues(outcome).Inc()
	m.refreshRunDuration.Observe(duration.Seconds())
	if outcome != "failed" {
		m.datasetRows.Set(float64(rows))
	}
}

func (m *Metrics) ObserveOverlay(overlay, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.overlayOps.WithLabelValues(overlay, op, result).Inc()
}

func (m *Metrics) SetMapReadyAttempts(n int) {
	if m == nil {
		return
	}
	m.mapReadyAttempts.Set(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
