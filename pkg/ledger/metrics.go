package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder receives ledger events. Names are dotted event keys.
type MetricsRecorder interface {
	IncrementCounter(name string, tags map[string]string)
	RecordProcessingTime(name string, duration time.Duration)
	RecordGauge(name string, value float64, tags map[string]string)
}

type noopMetrics struct{}

func (noopMetrics) IncrementCounter(string, map[string]string) {}
func (noopMetrics) RecordProcessingTime(string, time.Duration) {}
func (noopMetrics) RecordGauge(string, float64, map[string]string) {}

// NewNoopMetrics returns a recorder that discards everything.
func NewNoopMetrics() MetricsRecorder {
	return noopMetrics{}
}

type PrometheusMetrics struct {
	operations          *prometheus.CounterVec
	rejectedOutflows    *prometheus.CounterVec
	snapshotDuration    prometheus.Histogram
	portfolioDuration   prometheus.Histogram
	loansByStatus       *prometheus.GaugeVec
	outstandingBalance  prometheus.Gauge
	accruedInterestYear prometheus.Gauge
}

// NewPrometheusMetrics registers the ledger collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) MetricsRecorder {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soliloan_ledger_operations_total",
				Help: "Total number of ledger operations by outcome",
			},
			[]string{"operation", "status"},
		),
		rejectedOutflows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soliloan_rejected_outflows_total",
				Help: "Outflow transactions rejected for exceeding the loan balance",
			},
			[]string{"type"},
		),
		snapshotDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "soliloan_snapshot_duration_seconds",
				Help:    "Time to load a loan and compute its snapshot",
				Buckets: prometheus.DefBuckets,
			},
		),
		portfolioDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "soliloan_portfolio_refresh_duration_seconds",
				Help:    "Time to recompute every loan for the portfolio gauges",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		loansByStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "soliloan_loans",
				Help: "Number of loans by status at the last portfolio refresh",
			},
			[]string{"status"},
		),
		outstandingBalance: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "soliloan_outstanding_balance",
				Help: "Sum of all loan balances at the last portfolio refresh",
			},
		),
		accruedInterestYear: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "soliloan_interest_of_year",
				Help: "Interest accrued across all loans in the reported interest year",
			},
		),
	}
}

func (m *PrometheusMetrics) IncrementCounter(name string, tags map[string]string) {
	switch name {
	case "ledger.operation.success":
		m.operations.WithLabelValues(tags["operation"], "success").Inc()
	case "ledger.operation.failed":
		m.operations.WithLabelValues(tags["operation"], "failed").Inc()
	case "ledger.outflow.rejected":
		m.rejectedOutflows.WithLabelValues(tags["type"]).Inc()
	}
}

func (m *PrometheusMetrics) RecordProcessingTime(name string, duration time.Duration) {
	switch name {
	case "ledger.snapshot":
		m.snapshotDuration.Observe(duration.Seconds())
	case "ledger.portfolio":
		m.portfolioDuration.Observe(duration.Seconds())
	}
}

func (m *PrometheusMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	switch name {
	case "portfolio.loans":
		if status := tags["status"]; status != "" {
			m.loansByStatus.WithLabelValues(status).Set(value)
		}
	case "portfolio.balance":
		m.outstandingBalance.Set(value)
	case "portfolio.interest_of_year":
		m.accruedInterestYear.Set(value)
	}
}
