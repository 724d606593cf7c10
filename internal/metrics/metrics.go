// Package metrics holds the Prometheus collectors of the router pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SourceQueries   *prometheus.CounterVec
	SourcePools     *prometheus.HistogramVec
	SourceDuration  *prometheus.HistogramVec
	Quotes          *prometheus.CounterVec
	SearchDuration  prometheus.Histogram
	CandidateRoutes prometheus.Histogram
	GasEstimates    *prometheus.CounterVec
	Submissions     *prometheus.CounterVec
	NetworkState    prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		SourceQueries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "router_source_queries_total",
			Help: "Liquidity source queries by source and status",
		}, []string{"source", "status"}),
		SourcePools: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "router_source_pools",
			Help:    "Pools returned per source query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}, []string{"source"}),
		SourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "router_source_duration_seconds",
			Help:    "Liquidity source query latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		Quotes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "router_quotes_total",
			Help: "Quote attempts by outcome",
		}, []string{"outcome"}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_search_duration_seconds",
			Help:    "Trade search latency",
			Buckets: prometheus.DefBuckets,
		}),
		CandidateRoutes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_candidate_routes",
			Help:    "Candidate routes considered per search",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		GasEstimates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "router_gas_estimates_total",
			Help: "Gas estimations by outcome",
		}, []string{"outcome"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "router_submissions_total",
			Help: "Submission attempts by outcome",
		}, []string{"outcome"}),
		NetworkState: f.NewGauge(prometheus.GaugeOpts{
			Name: "router_network_state",
			Help: "Submission readiness: 0 disconnected, 1 wrong network, 2 ready",
		}),
	}
}

func (m *Metrics) ObserveSource(source string, pools int, took time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SourceQueries.WithLabelValues(source, status).Inc()
	m.SourceDuration.WithLabelValues(source).Observe(took.Seconds())
	if err == nil {
		m.SourcePools.WithLabelValues(source).Observe(float64(pools))
	}
}

func (m *Metrics) ObserveSearch(routes int, took time.Duration) {
	if m == nil {
		return
	}
	m.CandidateRoutes.Observe(float64(routes))
	m.SearchDuration.Observe(took.Seconds())
}

func (m *Metrics) QuoteOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Quotes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GasOutcome(outcome string) {
	if m == nil {
		return
	}
	m.GasEstimates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SubmitOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetNetworkState(state int) {
	if m == nil {
		return
	}
	m.NetworkState.Set(float64(state))
}
