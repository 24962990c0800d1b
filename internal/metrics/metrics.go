// Package metrics exposes Prometheus collectors for the crawl engine and its
// status server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes for links discovered on a fetched page.
const (
	LinkEnqueued  = "enqueued"
	LinkDuplicate = "duplicate"
	LinkRejected  = "rejected"
)

var (
	pagesTotal                 *prometheus.CounterVec
	failuresTotal              *prometheus.CounterVec
	linksDiscoveredTotal       *prometheus.CounterVec
	frontierDepth              prometheus.Gauge
	activeWorkers              prometheus.Gauge
	fetchDurationSeconds       prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_pages_total",
				Help: "Total number of pages fetched, labeled by status class.",
			},
			[]string{"status_class"},
		)

		failuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_failures_total",
				Help: "Total number of fetch failures, labeled by kind.",
			},
			[]string{"kind"},
		)

		linksDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_links_discovered_total",
				Help: "Links extracted from fetched pages, labeled by what happened to them.",
			},
			[]string{"outcome"},
		)

		frontierDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitecrawler_frontier_depth",
				Help: "Number of URLs waiting in the frontier.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitecrawler_active_workers",
				Help: "Number of workers currently processing a URL.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitecrawler_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records a fetched page and its fetch latency.
func ObservePage(statusCode int, duration time.Duration) {
	Init()
	pagesTotal.WithLabelValues(StatusClass(statusCode)).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveFailure increments the failure counter for the given kind.
func ObserveFailure(kind string) {
	Init()
	failuresTotal.WithLabelValues(kind).Inc()
}

// ObserveLink increments the discovered-link counter for outcome.
func ObserveLink(outcome string) {
	Init()
	linksDiscoveredTotal.WithLabelValues(outcome).Inc()
}

// SetFrontierDepth records the current frontier length.
func SetFrontierDepth(n int) {
	Init()
	frontierDepth.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
