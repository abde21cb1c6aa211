package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the fetcher and the crawl engine.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	ErrorsTotal        *prometheus.CounterVec
	BooksAddedTotal    prometheus.Counter
	BooksSkippedTotal  *prometheus.CounterVec
	CategoriesCreated  prometheus.Counter
	CrawlRunsTotal     *prometheus.CounterVec
	LastCrawledPageNum prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcrawl_requests_total",
			Help: "Total HTTP requests issued against the catalog site.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookcrawl_request_duration_seconds",
			Help:    "HTTP request latency for catalog fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcrawl_fetch_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	booksAdded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcrawl_books_added_total",
			Help: "Total number of books inserted into the store.",
		},
	)
	booksSkipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcrawl_books_skipped_total",
			Help: "Total number of item cards skipped, by reason.",
		},
		[]string{"reason"},
	)
	categoriesCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcrawl_categories_created_total",
			Help: "Total number of categories inserted into the store.",
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcrawl_runs_total",
			Help: "Crawl invocations by mode and result.",
		},
		[]string{"mode", "result"},
	)
	lastPage := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookcrawl_last_catalog_page",
			Help: "Most recent general catalog page crawled.",
		},
	)

	registry.MustRegister(requests, requestDuration, errorsTotal, booksAdded, booksSkipped, categoriesCreated, runs, lastPage)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		ErrorsTotal:        errorsTotal,
		BooksAddedTotal:    booksAdded,
		BooksSkippedTotal:  booksSkipped,
		CategoriesCreated:  categoriesCreated,
		CrawlRunsTotal:     runs,
		LastCrawledPageNum: lastPage,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncBooksAdded counts one inserted book.
func (m *Metrics) IncBooksAdded() {
	if m == nil {
		return
	}
	m.BooksAddedTotal.Inc()
}

// IncBooksSkipped counts one skipped item card.
func (m *Metrics) IncBooksSkipped(reason string) {
	if m == nil {
		return
	}
	m.BooksSkippedTotal.WithLabelValues(reason).Inc()
}

// IncCategoriesCreated counts one inserted category.
func (m *Metrics) IncCategoriesCreated() {
	if m == nil {
		return
	}
	m.CategoriesCreated.Inc()
}

// ObserveRun counts a finished crawl invocation.
func (m *Metrics) ObserveRun(mode, result string) {
	if m == nil {
		return
	}
	m.CrawlRunsTotal.WithLabelValues(mode, result).Inc()
}

// SetLastPage records the latest general catalog page crawled.
func (m *Metrics) SetLastPage(page int) {
	if m == nil {
		return
	}
	m.LastCrawledPageNum.Set(float64(page))
}
