// Package monitoring exposes Prometheus metrics for the dispatcher and
// the broadcast bus.
package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	WSConnections prometheus.Gauge

	TasksTotal      *prometheus.CounterVec
	EventsBroadcast *prometheus.CounterVec
}

// NewMetrics creates a metrics collector registered on its own registry
// so repeated construction in tests cannot collide.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpilot_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webpilot_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webpilot_ws_connections",
				Help: "Currently connected WebSocket clients",
			},
		),
		TasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpilot_tasks_total",
				Help: "Dispatched tasks by classified action",
			},
			[]string{"action"},
		),
		EventsBroadcast: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpilot_events_broadcast_total",
				Help: "Events broadcast to clients by type",
			},
			[]string{"type"},
		),
	}
	return m, registry
}

// Handler returns the /metrics endpoint handler for a registry.
func Handler(registry *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := statusClass(c.Writer.Status())

		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
