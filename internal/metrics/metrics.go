// Package metrics exposes download progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emcshop-dev/emcshop/internal/history"
)

// Recorder is a history.Observer that records into its own registry.
type Recorder struct {
	registry *prometheus.Registry

	pagesFetched   prometheus.Counter
	pagesDelivered prometheus.Counter
	fetchDuration  prometheus.Histogram
	retries        *prometheus.CounterVec
	duplicates     prometheus.Counter
	records        *prometheus.CounterVec
	balance        prometheus.Gauge
}

var _ history.Observer = (*Recorder)(nil)

// New creates a Recorder with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		pagesFetched: f.NewCounter(prometheus.CounterOpts{
			Name: "emcshop_pages_fetched_total",
			Help: "Transaction pages downloaded",
		}),
		pagesDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "emcshop_pages_delivered_total",
			Help: "Transaction pages handed to the reader in page order",
		}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "emcshop_page_fetch_duration_seconds",
			Help:    "Time taken to download and parse one page",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emcshop_fetch_retries_total",
			Help: "Page fetches retried after a failure",
		}, []string{"kind"}),
		duplicates: f.NewCounter(prometheus.CounterOpts{
			Name: "emcshop_duplicate_records_total",
			Help: "Records skipped because they were already read",
		}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emcshop_records_total",
			Help: "Records read, by kind",
		}, []string{"kind"}),
		balance: f.NewGauge(prometheus.GaugeOpts{
			Name: "emcshop_balance_rupees",
			Help: "Rupee balance reported by the most recently read page",
		}),
	}
}

func (r *Recorder) PageFetched(_ int, took time.Duration) {
	r.pagesFetched.Inc()
	r.fetchDuration.Observe(took.Seconds())
}

func (r *Recorder) PageDelivered(int) { r.pagesDelivered.Inc() }

func (r *Recorder) Retry(kind history.RetryKind) { r.retries.WithLabelValues(string(kind)).Inc() }

func (r *Recorder) Duplicate() { r.duplicates.Inc() }

// RecordRead counts one record handed to the caller.
func (r *Recorder) RecordRead(kind string) { r.records.WithLabelValues(kind).Inc() }

// SetBalance records the current balance.
func (r *Recorder) SetBalance(rupees int) { r.balance.Set(float64(rupees)) }

// Registry returns the registry the recorder writes to.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the recorder's metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
