package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	mutations       *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	driftAccounts   prometheus.Gauge
	imported        *prometheus.CounterVec
}

// NewPrometheusRecorder creates collectors under the given namespace.
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	return &PrometheusRecorder{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Total number of ledger writes per entity, operation and outcome",
			},
			[]string{"entity", "operation", "success"},
		),
		mutationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mutation_duration_seconds",
				Help:      "Ledger write latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
			[]string{"entity"},
		),
		driftAccounts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "balance_drift_accounts",
				Help:      "Accounts whose stored balance disagreed with the recomputed balance at the last check",
			},
		),
		imported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_transactions_total",
				Help:      "Statement transactions seen by imports, by result",
			},
			[]string{"result"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (r *PrometheusRecorder) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.mutations,
		r.mutationLatency,
		r.driftAccounts,
		r.imported,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// RecordMutation records one ledger write.
func (r *PrometheusRecorder) RecordMutation(entity, operation string, success bool, duration time.Duration) {
	r.mutations.WithLabelValues(entity, operation, strconv.FormatBool(success)).Inc()
	r.mutationLatency.WithLabelValues(entity).Observe(duration.Seconds())
}

// RecordDrift sets the drifting account gauge.
func (r *PrometheusRecorder) RecordDrift(accounts int) {
	r.driftAccounts.Set(float64(accounts))
}

// RecordImport adds an import's counts.
func (r *PrometheusRecorder) RecordImport(imported, skipped int) {
	r.imported.WithLabelValues("imported").Add(float64(imported))
	r.imported.WithLabelValues("skipped").Add(float64(skipped))
}
