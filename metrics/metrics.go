package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/umbratrace/core"
	"github.com/poiesic/umbratrace/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes used as label values.
const (
	OutcomeOK            = "ok"
	OutcomeInvalidFilter = "invalid_filter"
	OutcomeCancelled     = "cancelled"
	OutcomeError         = "error"
)

// Metrics provides observability for searches and the HTTP boundary.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Searches by outcome
	Searches *prometheus.CounterVec

	// Full pipeline latency
	SearchLatency prometheus.Histogram

	// Record counts after each pipeline stage
	StageRecords *prometheus.HistogramVec

	// Footprint score of completed searches
	FootprintScore prometheus.Histogram

	// HTTP requests by route, method and status code
	Requests *prometheus.CounterVec

	// HTTP request latency by route
	RequestLatency *prometheus.HistogramVec

	// Requests refused by the rate limiter
	RateLimited prometheus.Counter

	// Failed recent-search history writes
	HistoryErrors prometheus.Counter
}

// New creates a Metrics instance with all collectors registered on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "umbratrace_searches_total",
			Help: "Total searches by outcome",
		}, []string{"outcome"}), // outcome: "ok", "invalid_filter", "cancelled", "error"

		SearchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "umbratrace_search_duration_seconds",
			Help:    "Duration of the match, merge, filter and aggregate pipeline",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),

		StageRecords: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "umbratrace_search_stage_records",
			Help:    "Number of records leaving each pipeline stage",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"stage"}), // stage: "match", "merge", "filter"

		FootprintScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "umbratrace_footprint_score",
			Help:    "Footprint score of completed searches",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),

		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "umbratrace_http_requests_total",
			Help: "Total HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),

		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "umbratrace_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "umbratrace_http_rate_limited_total",
			Help: "Total HTTP requests rejected by the rate limiter",
		}),

		HistoryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "umbratrace_history_errors_total",
			Help: "Total failed writes to the recent search history",
		}),
	}
}

// Outcome classifies a search error into an outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, core.ErrInvalidFilter):
		return OutcomeInvalidFilter
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}

// IncrementSearch records the outcome of one search.
func (m *Metrics) IncrementSearch(err error) {
	if m != nil {
		m.Searches.WithLabelValues(Outcome(err)).Inc()
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method, code string, d time.Duration) {
	if m != nil {
		m.Requests.WithLabelValues(route, method, code).Inc()
		m.RequestLatency.WithLabelValues(route).Observe(d.Seconds())
	}
}

// IncrementRateLimited records a request refused by the rate limiter.
func (m *Metrics) IncrementRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

// IncrementHistoryErrors records a failed history write.
func (m *Metrics) IncrementHistoryErrors() {
	if m != nil {
		m.HistoryErrors.Inc()
	}
}

// NewSearchMonitor returns a monitor that feeds one search's stage sizes,
// latency and footprint score into m. Each search needs its own monitor.
func (m *Metrics) NewSearchMonitor() search.SearchMonitor {
	if m == nil {
		return nil
	}
	return &searchMonitor{metrics: m}
}

type searchMonitor struct {
	metrics *Metrics
	start   time.Time
}

var _ search.SearchMonitor = (*searchMonitor)(nil)

func (s *searchMonitor) Start(_ string) {
	s.start = time.Now()
}

func (s *searchMonitor) AfterMatch(records []core.Record) {
	s.metrics.StageRecords.WithLabelValues("match").Observe(float64(len(records)))
}

func (s *searchMonitor) AfterMerge(records []core.MergedRecord) {
	s.metrics.StageRecords.WithLabelValues("merge").Observe(float64(len(records)))
}

func (s *searchMonitor) AfterFilter(records []core.MergedRecord) {
	s.metrics.StageRecords.WithLabelValues("filter").Observe(float64(len(records)))
}

func (s *searchMonitor) Finish(response *core.Response) {
	s.metrics.SearchLatency.Observe(time.Since(s.start).Seconds())
	s.metrics.FootprintScore.Observe(float64(response.Summary.FootprintScore))
}
