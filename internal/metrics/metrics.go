package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "confluence"

// Registry holds all Prometheus metrics. A nil *Registry records nothing.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Domain metrics
	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	analysisScore    *prometheus.GaugeVec
	biasChanges      *prometheus.CounterVec
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	tradesClosed     *prometheus.CounterVec
	jobsActive       *prometheus.GaugeVec
	streamReconnects *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently in flight",
			},
		),

		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Completed analyses by profile and resulting bias",
			},
			[]string{"profile", "bias"},
		),
		analysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Time spent scoring one bar window",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
			},
		),
		analysisScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "analysis_score",
				Help:      "Latest net confluence score per symbol",
			},
			[]string{"symbol"},
		),
		biasChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bias_changes_total",
				Help:      "Bias transitions observed by the monitor",
			},
			[]string{"symbol", "bias"},
		),
		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtests_total",
				Help:      "Total number of backtests",
			},
			[]string{"status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backtest_duration_seconds",
				Help:      "Backtest duration in seconds",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120},
			},
		),
		tradesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_trades_total",
				Help:      "Simulated trades by exit reason",
			},
			[]string{"reason"},
		),
		jobsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_active",
				Help:      "Number of active jobs",
			},
			[]string{"type"},
		),
		streamReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_reconnects_total",
				Help:      "Kline stream reconnections",
			},
			[]string{"symbol"},
		),
	}

	reg.MustRegister(
		r.httpRequestsTotal,
		r.httpRequestDuration,
		r.httpRequestsInFlight,
		r.analysesTotal,
		r.analysisDuration,
		r.analysisScore,
		r.biasChanges,
		r.backtestsTotal,
		r.backtestDuration,
		r.tradesClosed,
		r.jobsActive,
		r.streamReconnects,
	)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	if r == nil {
		return
	}
	r.httpRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	if r != nil {
		r.httpRequestsInFlight.Inc()
	}
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	if r != nil {
		r.httpRequestsInFlight.Dec()
	}
}

// RecordAnalysis records one scored window.
func (r *Registry) RecordAnalysis(symbol, profile, bias string, score, duration float64) {
	if r == nil {
		return
	}
	r.analysesTotal.WithLabelValues(profile, bias).Inc()
	r.analysisDuration.Observe(duration)
	if symbol != "" {
		r.analysisScore.WithLabelValues(symbol).Set(score)
	}
}

// RecordBiasChange records a monitor bias transition.
func (r *Registry) RecordBiasChange(symbol, bias string) {
	if r != nil {
		r.biasChanges.WithLabelValues(symbol, bias).Inc()
	}
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	if r == nil {
		return
	}
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordTrades counts simulated trades by exit reason.
func (r *Registry) RecordTrades(byReason map[string]int) {
	if r == nil {
		return
	}
	for reason, n := range byReason {
		r.tradesClosed.WithLabelValues(reason).Add(float64(n))
	}
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	if r != nil {
		r.jobsActive.WithLabelValues(jobType).Set(float64(count))
	}
}

// RecordReconnect counts a stream reconnection.
func (r *Registry) RecordReconnect(symbol string) {
	if r != nil {
		r.streamReconnects.WithLabelValues(symbol).Inc()
	}
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
