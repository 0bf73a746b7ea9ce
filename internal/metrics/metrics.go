// Package metrics exposes Prometheus counters for matching, crawling,
// downloading and reconciliation.
//
// Every method is safe on a nil *Metrics so components can be built without
// metrics in tests and one-shot CLI runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "galleryvault"

// Metrics holds all Prometheus collectors of the engine.
type Metrics struct {
	registry *prometheus.Registry

	// Matching
	MatchAttemptsTotal *prometheus.CounterVec

	// Crawling
	CrawlURLsTotal     *prometheus.CounterVec
	CrawlDiscardsTotal *prometheus.CounterVec

	// Downloading
	DownloadAttemptsTotal *prometheus.CounterVec

	// Reconciliation
	VerificationsTotal  *prometheus.CounterVec
	RedownloadsQueued   prometheus.Counter
	TransfersInProgress prometheus.Gauge

	// Background jobs
	JobDurationSeconds *prometheus.HistogramVec
	JobRunsTotal       *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	m := &Metrics{registry: reg}
	m.initMatchMetrics(factory, namespace)
	m.initCrawlMetrics(factory, namespace)
	m.initDownloadMetrics(factory, namespace)
	m.initReconcileMetrics(factory, namespace)
	m.initJobMetrics(factory, namespace)
	return m
}

func (m *Metrics) initMatchMetrics(factory promauto.Factory, namespace string) {
	m.MatchAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "attempts_total",
			Help:      "Match attempts by provider, matcher type and outcome",
		},
		[]string{"provider", "matcher", "outcome"},
	)
}

func (m *Metrics) initCrawlMetrics(factory promauto.Factory, namespace string) {
	m.CrawlURLsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "urls_total",
			Help:      "URLs submitted to the crawler by provider",
		},
		[]string{"provider"},
	)
	m.CrawlDiscardsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "discards_total",
			Help:      "Galleries discarded before download by reason",
		},
		[]string{"reason"},
	)
}

func (m *Metrics) initDownloadMetrics(factory promauto.Factory, namespace string) {
	m.DownloadAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloader",
			Name:      "attempts_total",
			Help:      "Downloader runs by provider, downloader type and outcome",
		},
		[]string{"provider", "downloader", "outcome"},
	)
}

func (m *Metrics) initReconcileMetrics(factory promauto.Factory, namespace string) {
	m.VerificationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "verifications_total",
			Help:      "Archive verifications by result",
		},
		[]string{"result"},
	)
	m.RedownloadsQueued = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "redownloads_queued_total",
			Help:      "Redownloads enqueued after verification",
		},
	)
	m.TransfersInProgress = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "transfers_in_progress",
			Help:      "Asynchronous transfers awaiting completion",
		},
	)
}

func (m *Metrics) initJobMetrics(factory promauto.Factory, namespace string) {
	m.JobDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Duration of background job runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 15),
		},
		[]string{"job"},
	)
	m.JobRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs by job and status",
		},
		[]string{"job", "status"},
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// ObserveMatch counts one match attempt.
func (m *Metrics) ObserveMatch(provider, matcher, outcome string) {
	if m == nil {
		return
	}
	m.MatchAttemptsTotal.WithLabelValues(provider, matcher, outcome).Inc()
}

// ObserveCrawlURLs counts URLs accepted for a provider.
func (m *Metrics) ObserveCrawlURLs(provider string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CrawlURLsTotal.WithLabelValues(provider).Add(float64(n))
}

// ObserveDiscard counts one discarded gallery.
func (m *Metrics) ObserveDiscard(reason string) {
	if m == nil {
		return
	}
	m.CrawlDiscardsTotal.WithLabelValues(reason).Inc()
}

// ObserveDownload counts one downloader run.
func (m *Metrics) ObserveDownload(provider, downloader, outcome string) {
	if m == nil {
		return
	}
	m.DownloadAttemptsTotal.WithLabelValues(provider, downloader, outcome).Inc()
}

// ObserveVerification counts one archive verification.
func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(result).Inc()
}

// ObserveRedownloadQueued counts one enqueued redownload.
func (m *Metrics) ObserveRedownloadQueued() {
	if m == nil {
		return
	}
	m.RedownloadsQueued.Inc()
}

// SetTransfersInProgress records the number of pending transfers.
func (m *Metrics) SetTransfersInProgress(n int) {
	if m == nil {
		return
	}
	m.TransfersInProgress.Set(float64(n))
}

// ObserveJob records one background job run.
func (m *Metrics) ObserveJob(job string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.JobDurationSeconds.WithLabelValues(job).Observe(elapsed.Seconds())
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
}
