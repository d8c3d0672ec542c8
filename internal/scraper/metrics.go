package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors shared by every scraper
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RetriesTotal      *prometheus.CounterVec
	DealsScrapedTotal *prometheus.CounterVec
	DealsDroppedTotal *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocerydeals_requests_total",
			Help: "Total vendor HTTP attempts by store.",
		},
		[]string{"store"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grocerydeals_request_duration_seconds",
			Help:    "Vendor HTTP attempt latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocerydeals_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
		[]string{"store"},
	)
	scraped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocerydeals_deals_scraped_total",
			Help: "Total number of canonical deals produced.",
		},
		[]string{"store"},
	)
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocerydeals_deals_dropped_total",
			Help: "Total number of vendor records dropped during normalization.",
		},
		[]string{"store", "reason"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocerydeals_scrape_errors_total",
			Help: "Total number of failed scrapes by error type.",
		},
		[]string{"store", "error_type"},
	)

	registry.MustRegister(requests, requestDuration, retries, scraped, dropped, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		RetriesTotal:      retries,
		DealsScrapedTotal: scraped,
		DealsDroppedTotal: dropped,
		ErrorsTotal:       errorsTotal,
	}
}

// ObserveRequest counts one HTTP attempt and records its duration.
func (m *Metrics) ObserveRequest(store string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(store).Inc()
	m.RequestDuration.WithLabelValues(store).Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries(store string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(store).Inc()
}

// AddScraped adds n produced deals.
func (m *Metrics) AddScraped(store string, n int) {
	if m == nil {
		return
	}
	m.DealsScrapedTotal.WithLabelValues(store).Add(float64(n))
}

// IncDropped counts one dropped record.
func (m *Metrics) IncDropped(store, reason string) {
	if m == nil {
		return
	}
	m.DealsDroppedTotal.WithLabelValues(store, reason).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(store, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(store, errorType).Inc()
}
