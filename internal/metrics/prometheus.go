package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/helmsman/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing
// a collector that is never exercised registers nothing.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Controller metrics
	stateTransitions *prometheus.CounterVec
	stateDuration    *prometheus.HistogramVec
	sessionChanges   prometheus.Counter
	controllerState  prometheus.Gauge

	// Pipeline metrics
	passDuration     *prometheus.HistogramVec
	resourcesSkipped *prometheus.CounterVec
	assignmentWrites *prometheus.CounterVec
	resourceCount    prometheus.Gauge
	liveParticipants prometheus.Gauge

	// Store metrics
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "helmsman" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	ctrl, err := helmsman.NewController(&cfg, st,
//	    helmsman.WithMetrics(metrics.NewPrometheus(reg, "")))
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "helmsman"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "state_transitions_total",
			Help:      "Controller lifecycle transitions by source and target state.",
		}, []string{"from", "to"})

		p.stateDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "state_duration_seconds",
			Help:      "Time spent in a controller state before leaving it.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"state"})

		p.sessionChanges = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "session_changes_total",
			Help:      "Number of store sessions opened by the controller.",
		})

		p.controllerState = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "state",
			Help:      "Current controller state as its numeric value.",
		})

		p.passDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "pipeline",
			Name:      "pass_duration_seconds",
			Help:      "Reconciliation pass latency by result.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"result"})

		p.resourcesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pipeline",
			Name:      "resources_skipped_total",
			Help:      "Resources left out of a pass by reason.",
		}, []string{"reason"})

		p.assignmentWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pipeline",
			Name:      "writes_total",
			Help:      "Persisted pipeline outputs by kind and result.",
		}, []string{"kind", "result"})

		p.resourceCount = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "pipeline",
			Name:      "resources",
			Help:      "Resources computed in the last pass.",
		})

		p.liveParticipants = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "pipeline",
			Name:      "live_participants",
			Help:      "Live participants seen in the last pass.",
		})

		p.storeOps = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by type and result (success|failure).",
		}, []string{"operation", "result"})

		p.storeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency by type.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}, []string{"operation"})

		p.reg.MustRegister(
			p.stateTransitions,
			p.stateDuration,
			p.sessionChanges,
			p.controllerState,
			p.passDuration,
			p.resourcesSkipped,
			p.assignmentWrites,
			p.resourceCount,
			p.liveParticipants,
			p.storeOps,
			p.storeLatency,
		)
	})
}

// ControllerMetrics implementation

// RecordStateTransition counts the transition and observes time spent in the source state.
func (p *PrometheusCollector) RecordStateTransition(from, to types.ControllerState, duration float64) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	p.stateDuration.WithLabelValues(from.String()).Observe(duration)
	p.controllerState.Set(float64(to))
}

// RecordSessionChange increments the session change counter.
func (p *PrometheusCollector) RecordSessionChange() {
	p.ensureRegistered()
	p.sessionChanges.Inc()
}

// PipelineMetrics implementation

// RecordPassDuration observes pass latency by result.
func (p *PrometheusCollector) RecordPassDuration(duration float64, result string) {
	p.ensureRegistered()
	p.passDuration.WithLabelValues(result).Observe(duration)
}

// RecordResourceSkipped increments skipped resources for reason.
func (p *PrometheusCollector) RecordResourceSkipped(reason string) {
	p.ensureRegistered()
	p.resourcesSkipped.WithLabelValues(reason).Inc()
}

// RecordAssignmentWrite increments write outcomes by kind and result.
func (p *PrometheusCollector) RecordAssignmentWrite(kind, result string) {
	p.ensureRegistered()
	p.assignmentWrites.WithLabelValues(kind, result).Inc()
}

// RecordResourceCount sets the computed resource gauge.
func (p *PrometheusCollector) RecordResourceCount(count int) {
	p.ensureRegistered()
	p.resourceCount.Set(float64(count))
}

// RecordLiveParticipants sets the live participant gauge.
func (p *PrometheusCollector) RecordLiveParticipants(count int) {
	p.ensureRegistered()
	p.liveParticipants.Set(float64(count))
}

// StoreMetrics implementation

// RecordStoreOperation counts the operation and observes its latency.
func (p *PrometheusCollector) RecordStoreOperation(operation string, duration float64, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.storeOps.WithLabelValues(operation, result).Inc()
	p.storeLatency.WithLabelValues(operation).Observe(duration)
}
