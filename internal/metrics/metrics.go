// Package metrics provides Prometheus metrics for the background process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the background process collectors. A disabled instance is a no-op.
type Metrics struct {
	enabled  bool
	gatherer prometheus.Gatherer

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	refreshCollapsed prometheus.Counter
	connectedPopups  prometheus.Gauge
}

// New creates and registers metrics on reg. A nil reg uses a private registry.
func New(enabled bool, reg prometheus.Registerer) *Metrics {
	m := &Metrics{enabled: enabled}
	if !enabled {
		return m
	}

	if reg == nil {
		r := prometheus.NewRegistry()
		reg = r
		m.gatherer = r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	factory := promauto.With(reg)

	m.requestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "extension_auth_requests_total",
		Help: "Total auth requests handled by the background process",
	}, []string{"action", "result"})

	m.requestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "extension_auth_request_duration_seconds",
		Help:    "Auth request handling duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	m.refreshCollapsed = factory.NewCounter(prometheus.CounterOpts{
		Name: "extension_auth_refresh_collapsed_total",
		Help: "Refresh requests answered by an in-flight refresh",
	})

	m.connectedPopups = factory.NewGauge(prometheus.GaugeOpts{
		Name: "extension_auth_connected_popups",
		Help: "Popups currently connected to the channel",
	})

	return m
}

// RecordRequest records one handled request. result is "ok", "error" or "expired".
func (m *Metrics) RecordRequest(action, result string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.requestsTotal.WithLabelValues(action, result).Inc()
	m.requestDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (m *Metrics) RecordRefreshCollapsed() {
	if !m.enabled {
		return
	}
	m.refreshCollapsed.Inc()
}

func (m *Metrics) PopupConnected() {
	if !m.enabled {
		return
	}
	m.connectedPopups.Inc()
}

func (m *Metrics) PopupDisconnected() {
	if !m.enabled {
		return
	}
	m.connectedPopups.Dec()
}

// Handler serves the registry the metrics were registered on.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
