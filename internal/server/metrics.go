package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region metrics

const metricsNamespace = "hardening"

// Metrics holds the controller's Prometheus instruments. Registered against
// a private registry so tests can build as many servers as they like.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal     *prometheus.CounterVec // label: status
	CycleSeconds    prometheus.Histogram
	RiskScore       prometheus.Gauge
	RewardTotal     prometheus.Counter
	TelemetryEvents prometheus.Counter
	GateDenies      prometheus.Counter
}

// NewMetrics builds and registers the instrument set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Completed control cycles by terminal status",
		}, []string{"status"}),
		CycleSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_seconds",
			Help:      "Wall time per control cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		RiskScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "risk_score",
			Help:      "Risk score of the active world model at last cycle",
		}),
		RewardTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reward_total",
			Help:      "Cumulative reward fed to the selection policy",
		}),
		TelemetryEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "telemetry_events_total",
			Help:      "Telemetry events ingested",
		}),
		GateDenies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "gate_denies_total",
			Help:      "Cycles denied by the authorization gate",
		}),
	}
}

// #endregion metrics
