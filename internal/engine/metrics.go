package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность полного решения (lookup + оценка + аудит)
	DecisionDuration *prometheus.HistogramVec

	// Traffic: решения по исходам (allowed/denied)
	DecisionsTotal *prometheus.CounterVec

	// Errors: fault'ы по типам (store_unavailable, audit_write)
	FaultsTotal *prometheus.CounterVec

	// Saturation: размер кэша пар политик
	PolicyCacheSize prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — без регистратора метрики летят в локальный реестр
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		DecisionDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "a2a_decision_duration_seconds",
			Help:    "Histogram of delegation decision latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"result"}),

		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "a2a_decisions_total",
			Help: "Total number of delegation decisions by result.",
		}, []string{"result"}),

		FaultsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "a2a_faults_total",
			Help: "Total number of decision faults by type.",
		}, []string{"type"}), // типы: store_unavailable, audit_write

		PolicyCacheSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "a2a_policy_cache_entries",
			Help: "Current number of policy pairs held in the in-memory cache.",
		}),
	}
}
