// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_fetch_attempts_total",
			Help: "Total number of fetch attempts, labeled by retry policy and outcome.",
		},
		[]string{"policy", "outcome"},
	)
	fetchRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_fetch_retries_total",
			Help: "Total number of backoff waits before a retry, labeled by retry policy.",
		},
		[]string{"policy"},
	)
	itemsAdmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_items_admitted_total",
			Help: "Total number of item records admitted into the record store.",
		},
	)
	itemsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_items_skipped_total",
			Help: "Total number of items skipped as duplicates, labeled by stage and reason.",
		},
		[]string{"stage", "reason"},
	)
	flushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_flushes_total",
			Help: "Total number of record store flushes, labeled by status.",
		},
		[]string{"status"},
	)
	storeRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_store_records",
			Help: "Number of records currently held by the record store.",
		},
	)
	activeCategories = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_active_categories",
			Help: "Number of category workers currently running.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served, labeled by method, route and code.",
		},
		[]string{"method", "route", "code"},
	)
	pagesPerItem = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_pages_per_item",
			Help:    "Histogram of pages visited while resolving one item.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			fetchAttemptsTotal,
			fetchRetriesTotal,
			itemsAdmittedTotal,
			itemsSkippedTotal,
			flushesTotal,
			storeRecords,
			activeCategories,
			httpRequestsTotal,
			pagesPerItem,
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SanitizeSite extracts a lowercase hostname, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch counts one fetch attempt.
func ObserveFetch(policy, outcome string) {
	fetchAttemptsTotal.WithLabelValues(policy, outcome).Inc()
}

// ObserveRetry counts one backoff wait.
func ObserveRetry(policy string) {
	fetchRetriesTotal.WithLabelValues(policy).Inc()
}

// ObserveAdmitted counts one admitted record and updates the store size.
func ObserveAdmitted(storeSize int) {
	itemsAdmittedTotal.Inc()
	storeRecords.Set(float64(storeSize))
}

// ObserveSkipped counts one duplicate skip.
func ObserveSkipped(stage, reason string) {
	itemsSkippedTotal.WithLabelValues(stage, reason).Inc()
}

// ObserveFlush counts one flush attempt.
func ObserveFlush(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	flushesTotal.WithLabelValues(status).Inc()
}

// SetStoreRecords sets the store size gauge.
func SetStoreRecords(n int) {
	storeRecords.Set(float64(n))
}

// IncActiveCategories increments the active category gauge.
func IncActiveCategories() {
	activeCategories.Inc()
}

// DecActiveCategories decrements the active category gauge.
func DecActiveCategories() {
	activeCategories.Dec()
}

// ObservePagesPerItem records how many pages one resolution visited.
func ObservePagesPerItem(n int) {
	pagesPerItem.Observe(float64(n))
}

// ObserveHTTPRequest counts one served request.
func ObserveHTTPRequest(method, route string, code int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
