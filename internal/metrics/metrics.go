// Package metrics holds the Prometheus collectors of the process. All
// methods are safe on a nil *Metrics so components can run without them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "investor"

type Metrics struct {
	Registry *prometheus.Registry

	Runs             *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
	Steps            *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
	Branches         *prometheus.CounterVec
	CoercionFailures *prometheus.CounterVec
	ToolCalls        *prometheus.CounterVec
	Orders           *prometheus.CounterVec
}

// New builds the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Strategy runs by outcome (success, error, panic, skipped).",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of one strategy run.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time at which the last run finished.",
			},
		),
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Pipeline steps by kind (text, bool, int, float) and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Agent round trip time of one pipeline step.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		Branches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "branches_total",
				Help:      "Conditional steps by selected branch.",
			},
			[]string{"branch"},
		),
		CoercionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coercion_failures_total",
				Help:      "Agent answers that could not be coerced to the requested type.",
			},
			[]string{"kind"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Broker tool invocations by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_submitted_total",
				Help:      "Orders accepted by the broker.",
			},
			[]string{"side", "asset"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Runs, m.RunDuration, m.LastRunTimestamp,
		m.Steps, m.StepDuration, m.Branches, m.CoercionFailures,
		m.ToolCalls, m.Orders,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) ObserveRun(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(result).Inc()
	if result != "skipped" {
		m.RunDuration.Observe(d.Seconds())
	}
	m.LastRunTimestamp.SetToCurrentTime()
}

func (m *Metrics) ObserveStep(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(kind, outcome(err)).Inc()
	m.StepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObserveBranch(taken bool) {
	if m == nil {
		return
	}
	branch := "else"
	if taken {
		branch = "then"
	}
	m.Branches.WithLabelValues(branch).Inc()
}

func (m *Metrics) ObserveCoercionFailure(kind string) {
	if m == nil {
		return
	}
	m.CoercionFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTool(name string, isError bool) {
	if m == nil {
		return
	}
	result := "success"
	if isError {
		result = "error"
	}
	m.ToolCalls.WithLabelValues(name, result).Inc()
}

func (m *Metrics) ObserveOrder(side, asset string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(side, asset).Inc()
}
