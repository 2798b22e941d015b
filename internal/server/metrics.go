package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
// Each instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry      *prometheus.Registry
	simulations   *prometheus.CounterVec
	trials        prometheus.Counter
	duration      prometheus.Histogram
	streamClients prometheus.Gauge
}

// MetricsSnapshot is the subset of counters reported by the system status endpoint.
type MetricsSnapshot struct {
	SimulationsCompleted float64 `json:"simulations_completed"`
	SimulationsStopped   float64 `json:"simulations_stopped"`
	SimulationsFailed    float64 `json:"simulations_failed"`
	TrialsTotal          float64 `json:"trials_total"`
	StreamClients        float64 `json:"stream_clients"`
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		simulations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "montecarlo_simulations_total",
				Help: "Simulation batches by outcome",
			},
			[]string{"outcome"},
		),
		trials: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "montecarlo_trials_total",
				Help: "Trials completed across all batches",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "montecarlo_simulation_duration_seconds",
				Help:    "Wall-clock duration of simulation batches",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		streamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "montecarlo_event_stream_clients",
				Help: "Connected event stream clients",
			},
		),
	}

	m.registry.MustRegister(
		m.simulations,
		m.trials,
		m.duration,
		m.streamClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRun records a finished batch.
func (m *Metrics) ObserveRun(completed int, stopped bool, elapsed time.Duration) {
	outcome := "completed"
	if stopped {
		outcome = "stopped"
	}
	m.simulations.WithLabelValues(outcome).Inc()
	m.trials.Add(float64(completed))
	m.duration.Observe(elapsed.Seconds())
}

// ObserveFailure records a batch rejected before it ran.
func (m *Metrics) ObserveFailure() {
	m.simulations.WithLabelValues("failed").Inc()
}

// StreamClientConnected increments the stream client gauge.
func (m *Metrics) StreamClientConnected() {
	m.streamClients.Inc()
}

// StreamClientDisconnected decrements the stream client gauge.
func (m *Metrics) StreamClientDisconnected() {
	m.streamClients.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot reads the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		SimulationsCompleted: counterValue(m.simulations.WithLabelValues("completed")),
		SimulationsStopped:   counterValue(m.simulations.WithLabelValues("stopped")),
		SimulationsFailed:    counterValue(m.simulations.WithLabelValues("failed")),
		TrialsTotal:          counterValue(m.trials),
		StreamClients:        gaugeValue(m.streamClients),
	}
}

func counterValue(c prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	metric := &dto.Metric{}
	if err := g.Write(metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}
