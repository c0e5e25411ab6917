// Package metrics provides Prometheus metrics for the futbol service.
package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	idempotentReplays   prometheus.Counter

	// Store
	storeOperations *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
	storeRecords    *prometheus.GaugeVec

	// Balancer
	balancerRuns    *prometheus.CounterVec
	balancerSwaps   prometheus.Histogram
	balancerLatency prometheus.Histogram

	// Evaluations
	evaluationSubmissions *prometheus.CounterVec
	evaluationsOpened     prometheus.Counter
	evaluationsExpired    prometheus.Counter
	recalculations        *prometheus.CounterVec
	recalculatedPlayers   prometheus.Counter
	recalculationLatency  prometheus.Histogram

	// Notifications
	notifications *prometheus.CounterVec

	// Offline write queue
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDequeued prometheus.Counter
	queueDropped  prometheus.Counter

	// Replay workers
	workerActiveCount prometheus.Gauge
	workerJobs        *prometheus.CounterVec
	workerLatency     prometheus.Histogram
	workerRetries     prometheus.Counter

	errorsByComponent *prometheus.CounterVec

	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "futbol",
		subsystem:        "app",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels, Buckets: buckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by route, method and status"),
		[]string{"route", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_seconds", "HTTP request latency", nil),
		[]string{"route", "method"})
	m.idempotentReplays = auto.NewCounter(m.counterOpts("idempotent_replays_total", "POST requests answered with the stored response of an earlier Idempotency-Key"))

	m.storeOperations = auto.NewCounterVec(m.counterOpts("store_operations_total", "Store operations by backend, operation and outcome"),
		[]string{"backend", "op", "outcome"})
	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_operation_duration_seconds", "Store operation latency", nil),
		[]string{"backend", "op"})
	m.storeRecords = auto.NewGaugeVec(m.gaugeOpts("store_records", "Records held by the in-memory store"), []string{"kind"})

	m.balancerRuns = auto.NewCounterVec(m.counterOpts("balancer_runs_total", "Team generations by balance bucket"), []string{"bucket"})
	m.balancerSwaps = auto.NewHistogram(m.histogramOpts("balancer_swaps", "Swaps committed by the optimization phase", []float64{0, 1, 2, 3, 5, 8, 10}))
	m.balancerLatency = auto.NewHistogram(m.histogramOpts("balancer_duration_seconds", "Team generation latency",
		[]float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}))

	m.evaluationSubmissions = auto.NewCounterVec(m.counterOpts("evaluation_submissions_total", "Evaluation submissions by outcome"), []string{"outcome"})
	m.evaluationsOpened = auto.NewCounter(m.counterOpts("evaluations_opened_total", "Evaluation rounds opened"))
	m.evaluationsExpired = auto.NewCounter(m.counterOpts("evaluations_expired_total", "Evaluation rounds expired by the sweep"))
	m.recalculations = auto.NewCounterVec(m.counterOpts("recalculations_total", "OVR recalculations by outcome"), []string{"outcome"})
	m.recalculatedPlayers = auto.NewCounter(m.counterOpts("recalculated_players_total", "Players whose OVR was recalculated"))
	m.recalculationLatency = auto.NewHistogram(m.histogramOpts("recalculation_duration_seconds", "OVR recalculation latency", nil))

	m.notifications = auto.NewCounterVec(m.counterOpts("notifications_total", "Notifications and feed events by sink and outcome"),
		[]string{"sink", "outcome"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("offline_queue_size", "Writes waiting in the offline queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("offline_queue_capacity", "Capacity of the offline queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("offline_queue_enqueued_total", "Writes queued while the store was unavailable"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("offline_queue_dequeued_total", "Writes taken off the offline queue"))
	m.queueDropped = auto.NewCounter(m.counterOpts("offline_queue_dropped_total", "Writes dropped because the queue was full"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("replay_workers_active", "Replay workers currently running"))
	m.workerJobs = auto.NewCounterVec(m.counterOpts("replay_jobs_total", "Replayed writes by outcome"), []string{"outcome"})
	m.workerLatency = auto.NewHistogram(m.histogramOpts("replay_duration_seconds", "Replay latency per write", nil))
	m.workerRetries = auto.NewCounter(m.counterOpts("replay_retries_total", "Writes re-queued after a failed replay"))

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total", "Errors by component and type"), []string{"component", "type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordHTTPRequest counts a request and observes its latency.
func RecordHTTPRequest(route, method string, status int, seconds float64) {
	if !on() {
		return
	}
	globalManager.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	globalManager.httpRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// RecordIdempotentReplay counts a POST answered from a stored response.
func RecordIdempotentReplay() {
	if on() {
		globalManager.idempotentReplays.Inc()
	}
}

// RecordStoreOperation counts a store call and observes its latency.
func RecordStoreOperation(backend, op, outcome string, seconds float64) {
	if !on() {
		return
	}
	globalManager.storeOperations.WithLabelValues(backend, op, outcome).Inc()
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(seconds)
}

// UpdateStoreRecords sets the record count for kind.
func UpdateStoreRecords(kind string, n int) {
	if on() {
		globalManager.storeRecords.WithLabelValues(kind).Set(float64(n))
	}
}

// RecordBalancerRun records one team generation.
func RecordBalancerRun(bucket string, swaps int, seconds float64) {
	if !on() {
		return
	}
	globalManager.balancerRuns.WithLabelValues(bucket).Inc()
	globalManager.balancerSwaps.Observe(float64(swaps))
	globalManager.balancerLatency.Observe(seconds)
}

// RecordEvaluationSubmission counts a submission by outcome.
func RecordEvaluationSubmission(outcome string) {
	if on() {
		globalManager.evaluationSubmissions.WithLabelValues(outcome).Inc()
	}
}

// IncrementEvaluationsInitialized counts an opened evaluation round.
func IncrementEvaluationsInitialized() {
	if on() {
		globalManager.evaluationsOpened.Inc()
	}
}

// IncrementEvaluationsExpired counts rounds expired by a sweep.
func IncrementEvaluationsExpired(n int) {
	if on() {
		globalManager.evaluationsExpired.Add(float64(n))
	}
}

// RecordRecalculation records an OVR recalculation attempt.
func RecordRecalculation(outcome string, players int, seconds float64) {
	if !on() {
		return
	}
	globalManager.recalculations.WithLabelValues(outcome).Inc()
	globalManager.recalculatedPlayers.Add(float64(players))
	globalManager.recalculationLatency.Observe(seconds)
}

// RecordNotification counts a delivery attempt.
func RecordNotification(sink, outcome string) {
	if on() {
		globalManager.notifications.WithLabelValues(sink, outcome).Inc()
	}
}

// UpdateQueueSize sets the offline queue depth.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the offline queue capacity.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue counts a queued write.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue counts a write taken off the queue.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueDrop counts a write rejected by a full queue.
func RecordQueueDrop() {
	if on() {
		globalManager.queueDropped.Inc()
	}
}

// UpdateWorkerActiveCount sets the number of running replay workers.
func UpdateWorkerActiveCount(count int) {
	if on() {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// RecordWorkerJob records one replayed write.
func RecordWorkerJob(outcome string, seconds float64) {
	if !on() {
		return
	}
	globalManager.workerJobs.WithLabelValues(outcome).Inc()
	globalManager.workerLatency.Observe(seconds)
}

// RecordWorkerRetry counts a write put back on the queue.
func RecordWorkerRetry() {
	if on() {
		globalManager.workerRetries.Inc()
	}
}

// RecordErrorByComponent counts an error.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// UpdateSystemMetrics samples heap usage and goroutine count.
func UpdateSystemMetrics() {
	if !on() {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// RefreshInterval returns how often gauges such as the system metrics
// should be sampled.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the registry the global collectors are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Configure rebuilds the global collectors with opts on a fresh registry.
// It must run before handlers capture GetRegistry, normally once at startup.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
}
