package fixpoint

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics collection for
// fixpoint computations in production analyzers.
//
// Metrics exposed (all namespaced with "fixpoint_"):
//
//  1. worklist_depth (gauge): number of nodes currently pending in the
//     working set. Use: spot graphs whose iteration order causes churn.
//
//  2. visits_total (counter): cumulative node visits.
//     Labels: run_id. Use: compare iteration cost across working-set
//     disciplines and widening thresholds.
//
//  3. transfer_latency_ms (histogram): transfer-function execution time in
//     milliseconds. Labels: run_id, node_id, status (success/error).
//     Buckets: [0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100].
//     Use: P50/P95/P99 latency analysis per node.
//
//  4. joins_total (counter): combinations performed with lub.
//     Labels: run_id.
//
//  5. widenings_total (counter): combinations performed with widening.
//     Labels: run_id. Use: a high ratio of widenings to joins signals a
//     threshold set too low for the graph's join points.
//
//  6. reenqueues_total (counter): successor pushes caused by strict growth
//     of a stored pair. Labels: run_id.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := fixpoint.NewPrometheusMetrics(registry)
//	engine := fixpoint.New[string, Env, *fixpoint.StateMap[string, Env], struct{}](g,
//	    fixpoint.WithMetrics(metrics))
//
//	// Expose via HTTP for Prometheus scraping:
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Metrics collection is optional: a nil *PrometheusMetrics disables it.
type PrometheusMetrics struct {
	worklistDepth   prometheus.Gauge
	visits          *prometheus.CounterVec
	transferLatency *prometheus.HistogramVec
	joins           *prometheus.CounterVec
	widenings       *prometheus.CounterVec
	reenqueues      *prometheus.CounterVec

	registry prometheus.Registerer
	enabled  bool
}

// NewPrometheusMetrics creates and registers all fixpoint metrics with the
// provided Prometheus registry.
//
// Parameters:
//   - registry: registry to register metrics with. Pass nil to use
//     prometheus.DefaultRegisterer.
//
// Returns a fully initialized metrics collector. All metrics are registered
// under the "fixpoint" namespace.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.worklistDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixpoint",
		Name:      "worklist_depth",
		Help:      "Number of nodes currently pending in the working set",
	})

	pm.visits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixpoint",
		Name:      "visits_total",
		Help:      "Cumulative count of node visits across the computation",
	}, []string{"run_id"})

	pm.transferLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fixpoint",
		Name:      "transfer_latency_ms",
		Help:      "Transfer-function execution time in milliseconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
	}, []string{"run_id", "node_id", "status"}) // status: success, error

	pm.joins = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixpoint",
		Name:      "joins_total",
		Help:      "Combinations of stored and new values performed with lub",
	}, []string{"run_id"})

	pm.widenings = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixpoint",
		Name:      "widenings_total",
		Help:      "Combinations of stored and new values performed with widening",
	}, []string{"run_id"})

	pm.reenqueues = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixpoint",
		Name:      "reenqueues_total",
		Help:      "Successor pushes caused by strict growth of a stored pair",
	}, []string{"run_id"})

	return pm
}

// UpdateWorklistDepth sets the current number of pending nodes.
func (pm *PrometheusMetrics) UpdateWorklistDepth(depth int) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.worklistDepth.Set(float64(depth))
}

// RecordVisit increments the visit counter for a run.
func (pm *PrometheusMetrics) RecordVisit(runID string) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.visits.WithLabelValues(runID).Inc()
}

// RecordTransferLatency records the execution duration of one transfer-
// function invocation.
//
// Parameters:
//   - runID: computation identifier.
//   - nodeID: rendered identity of the visited node.
//   - latency: transfer execution duration.
//   - status: "success" or "error".
func (pm *PrometheusMetrics) RecordTransferLatency(runID, nodeID string, latency time.Duration, status string) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.transferLatency.WithLabelValues(runID, nodeID, status).Observe(float64(latency) / float64(time.Millisecond))
}

// RecordJoin increments the lub-combination counter for a run.
func (pm *PrometheusMetrics) RecordJoin(runID string) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.joins.WithLabelValues(runID).Inc()
}

// RecordWidening increments the widening-combination counter for a run.
func (pm *PrometheusMetrics) RecordWidening(runID string) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.widenings.WithLabelValues(runID).Inc()
}

// RecordReenqueue adds the number of successors pushed after a store.
func (pm *PrometheusMetrics) RecordReenqueue(runID string, count int) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.reenqueues.WithLabelValues(runID).Add(float64(count))
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.enabled = true
}
