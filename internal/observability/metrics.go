package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "propwatch"

// Metrics holds the Prometheus collectors for the evaluation cycle. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Upstream metrics.
	FetchTotal       *prometheus.CounterVec // labels: outcome={network,cache,stale,unavailable}
	FetchDuration    prometheus.Histogram
	RequestsLastHour prometheus.Gauge
	BreakerOpen      prometheus.Gauge

	// Cycle metrics.
	CyclesTotal   *prometheus.CounterVec // labels: result={ok,error}
	CycleDuration prometheus.Histogram

	// Indicator metrics.
	Score     *prometheus.GaugeVec // labels: category
	VaraScore *prometheus.GaugeVec // labels: category
	Status    *prometheus.GaugeVec // labels: category, status
	Records   *prometheus.GaugeVec // labels: category
}

func newCollectors() *Metrics {
	return &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_total",
			Help:      "Upstream gateway calls by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Duration of upstream network requests.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RequestsLastHour: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_requests_last_hour",
			Help:      "Network requests recorded in the trailing hour ledger.",
		}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_breaker_open",
			Help:      "1 while the upstream circuit breaker is open.",
		}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Evaluation cycles by result.",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete evaluation cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 240},
		}),
		Score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indicator_score",
			Help:      "Aggregate propagation score per category.",
		}, []string{"category"}),
		VaraScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indicator_vara_score",
			Help:      "VARA likelihood score per category.",
		}, []string{"category"}),
		Status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indicator_status",
			Help:      "1 for the current status label of each category.",
		}, []string{"category", "status"}),
		Records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indicator_records",
			Help:      "Qualifying reception records per category.",
		}, []string{"category"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newCollectors()
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchTotal,
		m.FetchDuration,
		m.RequestsLastHour,
		m.BreakerOpen,
		m.CyclesTotal,
		m.CycleDuration,
		m.Score,
		m.VaraScore,
		m.Status,
		m.Records,
	}
}

// ObserveFetch counts one gateway call. Network time is only recorded when the
// network was actually used.
func (m *Metrics) ObserveFetch(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.FetchDuration.Observe(elapsed.Seconds())
	}
}

// SetRequestsLastHour publishes the ledger size.
func (m *Metrics) SetRequestsLastHour(n int) {
	if m == nil {
		return
	}
	m.RequestsLastHour.Set(float64(n))
}

// SetBreakerOpen publishes the breaker state.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

// ObserveCycle records one evaluation cycle.
func (m *Metrics) ObserveCycle(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(elapsed.Seconds())
}

// ObserveIndicator publishes the latest result for one category.
func (m *Metrics) ObserveIndicator(category, status string, score, varaScore, records int) {
	if m == nil {
		return
	}
	m.Score.WithLabelValues(category).Set(float64(score))
	m.VaraScore.WithLabelValues(category).Set(float64(varaScore))
	m.Records.WithLabelValues(category).Set(float64(records))
	m.Status.DeletePartialMatch(prometheus.Labels{"category": category})
	m.Status.WithLabelValues(category, status).Set(1)
}
