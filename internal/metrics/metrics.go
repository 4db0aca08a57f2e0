// Package metrics exposes Prometheus instrumentation for the crawl pipeline.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the namespace for all crawler metrics.
const Namespace = "notice_crawler"

// Fetch outcomes.
const (
	FetchOK        = "ok"
	FetchRetry     = "retry"
	FetchPermanent = "permanent"
	FetchExhausted = "exhausted"
)

// Metrics holds all Prometheus collectors of the crawler.
type Metrics struct {
	fetchAttempts   *prometheus.CounterVec
	itemsEmitted    *prometheus.CounterVec
	itemsSuppressed *prometheus.CounterVec
	stubsDropped    *prometheus.CounterVec
	ocrResults      *prometheus.CounterVec
	dedupErrors     *prometheus.CounterVec
	triggersSkipped *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runsActive      *prometheus.GaugeVec
}

// New creates and registers the collectors on reg (default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		fetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetcher",
			Name:      "attempts_total",
			Help:      "HTTP fetch attempts by outcome",
		}, []string{"outcome"}),
		itemsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "pipeline",
			Name:      "items_emitted_total",
			Help:      "Crawl items handed to the sink",
		}, []string{"source"}),
		itemsSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "pipeline",
			Name:      "items_suppressed_total",
			Help:      "Crawl items suppressed as already ingested",
		}, []string{"source"}),
		stubsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "pipeline",
			Name:      "stubs_dropped_total",
			Help:      "Item stubs dropped before emission",
		}, []string{"source", "reason"}),
		ocrResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ocr",
			Name:      "results_total",
			Help:      "OCR attempts by outcome",
		}, []string{"outcome"}),
		dedupErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "dedup",
			Name:      "errors_total",
			Help:      "Dedup store failures by operation",
		}, []string{"op"}),
		triggersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "triggers_skipped_total",
			Help:      "Triggers ignored because the source was already running",
		}, []string{"source"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"source"}),
		runsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "runs_active",
			Help:      "Pipeline runs currently in progress",
		}, []string{"source"}),
	}
}

// FetchAttempt records one fetch attempt outcome.
func (m *Metrics) FetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(outcome).Inc()
}

// ItemEmitted records an emitted item.
func (m *Metrics) ItemEmitted(source string) {
	if m == nil {
		return
	}
	m.itemsEmitted.WithLabelValues(source).Inc()
}

// ItemSuppressed records a deduplicated item.
func (m *Metrics) ItemSuppressed(source string) {
	if m == nil {
		return
	}
	m.itemsSuppressed.WithLabelValues(source).Inc()
}

// StubDropped records a stub that produced no item.
func (m *Metrics) StubDropped(source, reason string) {
	if m == nil {
		return
	}
	m.stubsDropped.WithLabelValues(source, reason).Inc()
}

// OCRResult records an OCR outcome.
func (m *Metrics) OCRResult(outcome string) {
	if m == nil {
		return
	}
	m.ocrResults.WithLabelValues(outcome).Inc()
}

// DedupError records a dedup store failure.
func (m *Metrics) DedupError(op string) {
	if m == nil {
		return
	}
	m.dedupErrors.WithLabelValues(op).Inc()
}

// TriggerSkipped records a no-op trigger.
func (m *Metrics) TriggerSkipped(source string) {
	if m == nil {
		return
	}
	m.triggersSkipped.WithLabelValues(source).Inc()
}

// RunStarted marks a run as active and returns a func that records its end.
func (m *Metrics) RunStarted(source string) func() {
	if m == nil {
		return func() {}
	}

	start := time.Now()
	m.runsActive.WithLabelValues(source).Inc()

	return func() {
		m.runsActive.WithLabelValues(source).Dec()
		m.runDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}
}
