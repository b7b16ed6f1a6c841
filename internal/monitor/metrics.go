// Package monitor provides the Prometheus metrics, health checks and the
// HTTP status endpoint served while the verifier runs in monitoring mode.
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the qtop collector set on a private registry so tests can
// run collectors side by side without global registration conflicts.
type Metrics struct {
	registry *prometheus.Registry

	PacketsProcessed  prometheus.Counter
	ActiveCircuits    prometheus.Gauge
	PacketDelayMs     prometheus.Histogram
	Sweeps            prometheus.Counter
	WindingViolations prometheus.Counter
	CircuitEvents     prometheus.Counter
}

// NewMetrics builds and registers the collector set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		PacketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qtop_packets_processed_total",
			Help: "Packets run through the topological timing engine.",
		}),
		ActiveCircuits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qtop_active_circuits",
			Help: "Circuits currently held by the controller.",
		}),
		PacketDelayMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qtop_packet_delay_ms",
			Help:    "Quantum-topological packet delays in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		}),
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qtop_sweeps_total",
			Help: "Completed monitor verification sweeps.",
		}),
		WindingViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qtop_winding_violations_total",
			Help: "Winding number violations detected.",
		}),
		CircuitEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qtop_circuit_events_total",
			Help: "Circuit lifecycle events observed by the monitor.",
		}),
	}
	reg.MustRegister(
		m.PacketsProcessed,
		m.ActiveCircuits,
		m.PacketDelayMs,
		m.Sweeps,
		m.WindingViolations,
		m.CircuitEvents,
	)
	return m
}

// RecordPacket records one processed packet and its computed delay.
func (m *Metrics) RecordPacket(delayMs float64) {
	m.PacketsProcessed.Inc()
	m.PacketDelayMs.Observe(delayMs)
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
