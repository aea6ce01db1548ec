package syncer

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "banksync"

// Metrics are the run counters exported in Prometheus format. A nil
// *Metrics records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	transactions    *prometheus.CounterVec
	runs            *prometheus.CounterVec
	accountFailures prometheus.Counter
	lastRun         prometheus.Gauge
	duration        prometheus.Histogram
}

// NewMetrics creates the run metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transactions_total",
			Help:      "Fetched transactions by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Finished sync runs by terminal status.",
		}, []string{"status"}),
		accountFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "account_failures_total",
			Help:      "Accounts whose sync ended on an authentication or API error.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Start time of the last finished run.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	m.registry.MustRegister(m.transactions, m.runs, m.accountFailures, m.lastRun, m.duration)
	return m
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeRun(o Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(OutcomeCreated.String()).Add(float64(o.Counters.Created))
	m.transactions.WithLabelValues(OutcomeSkipped.String()).Add(float64(o.Counters.Skipped))
	m.transactions.WithLabelValues(OutcomeError.String()).Add(float64(o.Counters.Errors))
	m.runs.WithLabelValues(string(o.Status)).Inc()
	m.lastRun.Set(float64(o.StartedAt.Unix()))
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) accountFailed() {
	if m == nil {
		return
	}
	m.accountFailures.Inc()
}

// WriteTextfile writes the metrics to path in the text exposition format,
// for collection by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
