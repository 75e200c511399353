package dispatch

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dispatch counters on their own registry
type Metrics struct {
	Dispatches   *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	PayloadBytes *prometheus.HistogramVec
	InFlight     prometheus.Gauge
	registry     *prometheus.Registry
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "containerdispatch_dispatch_total",
				Help: "Dispatch attempts by transport, final state and error kind",
			},
			[]string{"transport", "state", "kind"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "containerdispatch_dispatch_duration_seconds",
				Help:    "Time spent delivering one request",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"transport"},
		),
		PayloadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "containerdispatch_dispatch_payload_bytes",
				Help:    "Size of delivered payloads",
				Buckets: prometheus.ExponentialBuckets(64, 2, 10),
			},
			[]string{"transport", "framing"},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "containerdispatch_dispatch_in_flight",
			Help: "Dispatches currently holding the transport",
		}),
		registry: registry,
	}

	registry.MustRegister(m.Dispatches, m.Duration, m.PayloadBytes, m.InFlight)
	return m
}

func (m *Metrics) observe(res Result, size int, binary bool) {
	transport := string(res.Transport)
	if transport == "" {
		transport = "unknown"
	}
	m.Dispatches.WithLabelValues(transport, string(res.State), res.Kind()).Inc()
	m.Duration.WithLabelValues(transport).Observe(res.Duration.Seconds())
	if res.State == StateDelivered {
		m.PayloadBytes.WithLabelValues(transport, framingLabel(binary)).Observe(float64(size))
	}
}

func framingLabel(binary bool) string {
	if binary {
		return "binary"
	}
	return "text"
}

// Registry exposes the underlying registry (for tests and gatherers)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
