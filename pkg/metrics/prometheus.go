// Package metrics provides Prometheus metrics for the sumcheck service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Score variants used as label values.
const (
	VariantTrial = "trial"
	VariantFull  = "full"
)

// Manager manages all Prometheus metrics for the sumcheck service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Scoring
	analysesScored       *prometheus.CounterVec
	stageAssigned        *prometheus.CounterVec
	scoreDistribution    *prometheus.HistogramVec
	scoringLatency       prometheus.Histogram
	invalidInput         *prometheus.CounterVec
	submissionsDuplicate prometheus.Counter

	// Persistence
	analysesPersisted      prometheus.Counter
	analysesDeleted        prometheus.Counter
	repositoryRecordsTotal prometheus.Gauge
	repositoryWriteLatency prometheus.Histogram
	repositoryQueryLatency prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sumcheck",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.analysesScored = auto.NewCounterVec(
		m.counterOpts("analyses_scored_total", "Total number of questionnaires scored by variant"),
		[]string{"variant"},
	)
	m.stageAssigned = auto.NewCounterVec(
		m.counterOpts("stage_assigned_total", "Total number of scores classified into each stage"),
		[]string{"variant", "stage"},
	)
	m.scoreDistribution = auto.NewHistogramVec(
		m.histogramOpts("score", "Distribution of final scores on the 0-100 scale",
			prometheus.LinearBuckets(10, 10, 10)),
		[]string{"variant"},
	)
	m.scoringLatency = auto.NewHistogram(
		m.histogramOpts("scoring_latency_milliseconds", "Histogram of scoring latency in milliseconds", m.histogramBuckets),
	)
	m.invalidInput = auto.NewCounterVec(
		m.counterOpts("invalid_input_total", "Total number of questionnaires rejected for out-of-set answers"),
		[]string{"variant"},
	)
	m.submissionsDuplicate = auto.NewCounter(
		m.counterOpts("submissions_duplicate_total", "Total number of repeated submission ids"),
	)

	m.analysesPersisted = auto.NewCounter(
		m.counterOpts("analyses_persisted_total", "Total number of analyses written to the store"),
	)
	m.analysesDeleted = auto.NewCounter(
		m.counterOpts("analyses_deleted_total", "Total number of analyses deleted from the store"),
	)
	m.repositoryRecordsTotal = auto.NewGauge(
		m.gaugeOpts("repository_records_total", "Number of analyses currently stored"),
	)
	m.repositoryWriteLatency = auto.NewHistogram(
		m.histogramOpts("repository_write_latency_milliseconds", "Repository write latency in milliseconds", m.histogramBuckets),
	)
	m.repositoryQueryLatency = auto.NewHistogram(
		m.histogramOpts("repository_query_latency_milliseconds", "Repository query latency in milliseconds", m.histogramBuckets),
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current number of analyses waiting to be persisted"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Total number of enqueued analyses"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Total number of dequeued analyses"))
	m.queueEnqueueErrors = auto.NewCounter(
		m.counterOpts("queue_enqueue_errors_total", "Total number of enqueue attempts rejected"),
	)
	m.queueProcessingLatency = auto.NewHistogram(
		m.histogramOpts("queue_processing_latency_milliseconds", "Time from enqueue to dequeue in milliseconds", m.histogramBuckets),
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured number of persistence workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers currently persisting an analysis"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle_count", "Workers waiting for work"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", m.histogramBuckets),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of failed persistence attempts"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_milliseconds", "Most recent GC pause in milliseconds", m.histogramBuckets),
	)
}

// RecordAnalysisScored counts one scored questionnaire with its final score and stage.
func RecordAnalysisScored(variant, stage string, score int) {
	globalManager.analysesScored.WithLabelValues(variant).Inc()
	globalManager.stageAssigned.WithLabelValues(variant, stage).Inc()
	globalManager.scoreDistribution.WithLabelValues(variant).Observe(float64(score))
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordInvalidInput counts a rejected questionnaire.
func RecordInvalidInput(variant string) {
	globalManager.invalidInput.WithLabelValues(variant).Inc()
}

// RecordSubmissionDuplicate increments the duplicate submissions counter.
func RecordSubmissionDuplicate() {
	globalManager.submissionsDuplicate.Inc()
}

// RecordAnalysisPersisted increments the persisted analyses counter.
func RecordAnalysisPersisted() {
	globalManager.analysesPersisted.Inc()
}

// RecordAnalysisDeleted increments the deleted analyses counter.
func RecordAnalysisDeleted() {
	globalManager.analysesDeleted.Inc()
}

// UpdateRepositoryRecordsTotal sets the number of stored analyses.
func UpdateRepositoryRecordsTotal(count int) {
	globalManager.repositoryRecordsTotal.Set(float64(count))
}

// RecordRepositoryWriteLatency records repository write latency.
func RecordRepositoryWriteLatency(latencyMs float64) {
	globalManager.repositoryWriteLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
