package fixpoint

import (
	"github.com/dshills/fixpoint-go/fixpoint/emit"
	"github.com/dshills/fixpoint-go/fixpoint/store"
)

// Option is a functional option for configuring an Engine.
//
// All options configure observability collaborators; none of them affect
// the computed fixpoint. An engine built with no options runs silently.
//
// Example:
//
//	engine := fixpoint.New[string, Env, *fixpoint.StateMap[string, Env], struct{}](g,
//	    fixpoint.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	    fixpoint.WithMetrics(metrics),
//	    fixpoint.WithStats(stats),
//	)
type Option func(*engineConfig)

// engineConfig collects options before they are applied to an Engine.
type engineConfig struct {
	emitter emit.Emitter
	metrics *PrometheusMetrics
	trace   store.TraceStore
	stats   *RunStats
}

// WithEmitter injects an observability event emitter.
//
// The engine emits fixpoint_start, node_visit, node_stored, node_stable,
// widening_applied, fixpoint_error and fixpoint_complete events. Emission
// is fire-and-forget; a slow emitter slows the loop, so buffer or discard
// in production (see the emit package).
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) {
		cfg.emitter = e
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Create the collector with NewPrometheusMetrics(registry). A nil collector
// disables collection.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *engineConfig) {
		cfg.metrics = m
	}
}

// WithTraceStore attaches an iteration-trace sink.
//
// Every visit is recorded as a store.VisitRecord (sequence number, node,
// combination operation, growth flag). The trace captures the iteration
// sequence for debugging and tuning; abstract states and results are never
// persisted. A failing trace write aborts the run with an
// UNEXPECTED_FAILURE error.
func WithTraceStore(ts store.TraceStore) Option {
	return func(cfg *engineConfig) {
		cfg.trace = ts
	}
}

// WithStats attaches a per-node iteration statistics collector.
func WithStats(s *RunStats) Option {
	return func(cfg *engineConfig) {
		cfg.stats = s
	}
}
