// Package metrics provides Prometheus metrics for command execution and streaming.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	WorkflowsTotal  *prometheus.CounterVec
	StreamDeltas    *prometheus.CounterVec
	ActiveLanes     prometheus.Gauge
	CancelsTotal    prometheus.Counter
}

// New registers every metric on reg. Pass prometheus.DefaultRegisterer in the
// server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CommandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentorange_commands_total",
				Help: "Total number of command runs by backend and outcome",
			},
			[]string{"host", "status"},
		),
		CommandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentorange_command_duration_seconds",
				Help:    "Duration of command runs in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"host"},
		),
		WorkflowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentorange_workflows_total",
				Help: "Total number of workflow runs by outcome",
			},
			[]string{"status"},
		),
		StreamDeltas: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentorange_stream_deltas_total",
				Help: "Total number of streamed text deltas by backend",
			},
			[]string{"host"},
		),
		ActiveLanes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentorange_active_lanes",
				Help: "Number of lanes currently generating",
			},
		),
		CancelsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "agentorange_cancels_total",
				Help: "Total number of lane cancellations",
			},
		),
	}
}

// RecordCommand is nil-safe so callers can run without metrics.
func (m *Metrics) RecordCommand(host string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CommandsTotal.WithLabelValues(host, status).Inc()
	m.CommandDuration.WithLabelValues(host).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordWorkflow(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.WorkflowsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordDelta(host string) {
	if m == nil {
		return
	}
	m.StreamDeltas.WithLabelValues(host).Inc()
}

func (m *Metrics) LaneStarted() {
	if m == nil {
		return
	}
	m.ActiveLanes.Inc()
}

func (m *Metrics) LaneStopped() {
	if m == nil {
		return
	}
	m.ActiveLanes.Dec()
}

func (m *Metrics) RecordCancel() {
	if m == nil {
		return
	}
	m.CancelsTotal.Inc()
}
