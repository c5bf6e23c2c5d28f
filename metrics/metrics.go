package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RemoteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attractions_remote_requests_total",
		Help: "Record service calls made by the session client, by operation and outcome",
	}, []string{"op", "outcome"})
	RemoteDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attractions_remote_duration_ms",
		Help:    "Record service call duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"op"})
	ReviewFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attractions_review_cache_fetches_total",
		Help: "Review cache refreshes; shared=true when the caller joined an in-flight fetch",
	}, []string{"shared"})
	StaleResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attractions_callout_stale_results_total",
		Help: "Async results discarded because their record was no longer open",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attractions_http_requests_total",
		Help: "Record service HTTP requests by route and status code",
	}, []string{"route", "code"})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attractions_http_duration_ms",
		Help:    "Record service HTTP handler duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	RecordCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attractions_record_cache_total",
		Help: "Redis record cache lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(RemoteRequestsTotal)
	prometheus.MustRegister(RemoteDurationMs)
	prometheus.MustRegister(ReviewFetchesTotal)
	prometheus.MustRegister(StaleResultsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPDurationMs)
	prometheus.MustRegister(RecordCacheTotal)
}

// Handler serves the default registry on /metrics.
func Handler() http.Handler { return promhttp.Handler() }
