package fixpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/fixpoint-go/fixpoint/emit"
	"github.com/dshills/fixpoint-go/fixpoint/store"
)

// resultPair is the stored value for a processed node: its post-state and
// the intermediate store produced alongside it. The two are always stored
// and replaced together, never one without the other.
type resultPair[S, F any] struct {
	post  S
	inner F
}

// Engine computes least fixpoints over a graph of program nodes.
//
// The Engine is the interpretive heart of a static analyzer. Given a set of
// entry nodes with associated entry states, it computes, for every node
// reachable in the graph, the least fixed point of the node-level abstract
// transfer function, accelerated by widening when the per-node iteration
// count exceeds a threshold.
//
// The engine itself is single-threaded and non-suspending: no operation
// inside the fixpoint loop yields, blocks, or cooperates with a scheduler,
// and all iteration state is scoped to a single Fixpoint call. An Engine
// value carries only the graph and optional observability collaborators, so
// it may be shared across sequential runs.
//
// Type parameters:
//   - N: node identity (opaque, comparable).
//   - S: abstract state, an Element over itself.
//   - F: intermediate store, an InnerStore over (N, S, F).
//   - C: call-graph oracle consulted by transfer functions; opaque to the
//     engine. Use struct{} when the analysis needs none.
//
// Example:
//
//	g := fixpoint.NewAdjacencyGraph[string, Env](makeStore)
//	// ... AddNode / AddEdge ...
//	engine := fixpoint.New[string, Env, *fixpoint.StateMap[string, Env], struct{}](g)
//	result, err := engine.Fixpoint(ctx, "run-001",
//	    map[string]Env{"entry": initial},
//	    struct{}{},
//	    fixpoint.NewFIFOWorkingSet[string](),
//	    5,
//	    transferFn,
//	)
type Engine[N comparable, S Element[S], F InnerStore[N, S, F], C any] struct {
	graph   Graph[N, S, F]
	emitter emit.Emitter
	metrics *PrometheusMetrics
	trace   store.TraceStore
	stats   *RunStats
}

// New creates an Engine over the given graph.
//
// Options attach observability collaborators (emitter, metrics, trace
// store, stats); none of them affect the computed fixpoint. The graph must
// not be modified while a Fixpoint call is in flight.
func New[N comparable, S Element[S], F InnerStore[N, S, F], C any](g Graph[N, S, F], opts ...Option) *Engine[N, S, F, C] {
	cfg := &engineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Engine[N, S, F, C]{
		graph:   g,
		emitter: cfg.emitter,
		metrics: cfg.metrics,
		trace:   cfg.trace,
		stats:   cfg.stats,
	}
}

// fixpointRun holds the call-scoped state of one fixpoint computation. It
// dies with the call frame; only the flattened result map escapes.
type fixpointRun[N comparable, S Element[S], F InnerStore[N, S, F], C any] struct {
	engine     *Engine[N, S, F, C]
	ctx        context.Context
	runID      string
	starting   map[N]S
	oracle     C
	ws         WorkingSet[N]
	widenAfter int
	semantics  Semantics[N, S, F, C]

	pairs    map[N]resultPair[S, F]
	counters map[N]int
	depth    int // pending nodes, pushes minus pops
	seq      int // visit sequence number, 1-based
}

// Fixpoint runs the fixpoint computation and returns the flattened result:
// one entry per processed outer node (its post-state) plus one entry per
// inner node present in any intermediate store. The two key sets are
// disjoint within a well-formed graph.
//
// Parameters:
//   - ctx: forwarded to observability sinks (trace store, emitter flush)
//     only. The iteration loop itself never blocks on or polls the context;
//     cancellation is not part of the engine contract.
//   - runID: identifier attached to events, metrics and trace records.
//   - startingPoints: entry nodes with their prescribed entry states. Every
//     key must be a member of the graph.
//   - oracle: the call-graph collaborator handed to the transfer function
//     verbatim.
//   - ws: the working set governing visit order, normally empty. Nodes
//     already in it are popped and processed like any pushed node.
//   - widenAfter: per-incoming-edge revisit budget before widening kicks
//     in. Zero means widening is never applied. For a node with p
//     predecessors the effective threshold is widenAfter × p, so
//     branch-heavy join points get a proportionally larger lub budget; a
//     node with no predecessors widens on its first revisit.
//   - semantics: the abstract transfer function.
//
// The iteration: pop a node, join its seed with the edge-transformed
// post-states of its stored predecessors, run the transfer function with a
// fresh intermediate store, combine with the previously stored pair (lub
// while the node's counter is positive, widening after), and re-enqueue the
// node's successors if either component strictly grew. On working-set
// exhaustion the stored pairs are flattened into the result map.
//
// Any failure aborts the whole call: no partial result map is returned, and
// states stored before the failure are discarded with the call frame. The
// returned error is an *EngineError carrying one of the Code constants and
// the offending node's identity.
func (e *Engine[N, S, F, C]) Fixpoint(
	ctx context.Context,
	runID string,
	startingPoints map[N]S,
	oracle C,
	ws WorkingSet[N],
	widenAfter int,
	semantics Semantics[N, S, F, C],
) (map[N]S, error) {
	if e == nil || e.graph == nil {
		return nil, &EngineError{Code: "NIL_ENGINE", Message: "engine has no graph"}
	}
	if ws == nil {
		return nil, &EngineError{Code: "NIL_WORKING_SET", Message: "working set is required"}
	}
	if semantics == nil {
		return nil, &EngineError{Code: "NIL_SEMANTICS", Message: "transfer function is required"}
	}
	if widenAfter < 0 {
		return nil, &EngineError{
			Code:    "INVALID_THRESHOLD",
			Message: fmt.Sprintf("widening threshold must be >= 0, got %d", widenAfter),
		}
	}

	run := &fixpointRun[N, S, F, C]{
		engine:     e,
		ctx:        ctx,
		runID:      runID,
		starting:   startingPoints,
		oracle:     oracle,
		ws:         ws,
		widenAfter: widenAfter,
		semantics:  semantics,
		pairs:      make(map[N]resultPair[S, F]),
		counters:   make(map[N]int),
	}

	e.emitEvent(runID, 0, "", "fixpoint_start", map[string]interface{}{
		"starting_points": len(startingPoints),
		"widen_after":     widenAfter,
	})

	if err := run.seed(); err != nil {
		e.emitError(runID, 0, err)
		return nil, err
	}

	if err := run.iterate(); err != nil {
		e.emitError(runID, run.seq, err)
		return nil, err
	}

	result := run.flatten()

	e.emitEvent(runID, run.seq, "", "fixpoint_complete", map[string]interface{}{
		"visits":  run.seq,
		"results": len(result),
	})
	if e.emitter != nil {
		// Best-effort delivery of buffered events; a flush failure does not
		// invalidate the computed fixpoint.
		_ = e.emitter.Flush(ctx)
	}

	return result, nil
}

// seed validates the starting points and pushes them onto the working set.
//
// Pushes follow the graph's node enumeration order rather than map order,
// keeping runs deterministic for order-sensitive working sets.
func (r *fixpointRun[N, S, F, C]) seed() error {
	for n := range r.starting {
		if !r.engine.graph.Contains(n) {
			return &EngineError{
				Code:    CodeUnknownNode,
				Message: "starting point is not a member of the graph",
				Node:    nodeString(n),
			}
		}
	}
	for _, n := range r.engine.graph.Nodes() {
		if _, ok := r.starting[n]; ok {
			r.push(n)
		}
	}
	return nil
}

// iterate drains the working set, processing one node per pop.
func (r *fixpointRun[N, S, F, C]) iterate() error {
	for {
		n, ok := r.ws.Pop()
		if !ok {
			return nil
		}
		r.depth--
		r.engine.metrics.UpdateWorklistDepth(r.depth)

		if !r.engine.graph.Contains(n) {
			return &EngineError{
				Code:    CodeUnknownNode,
				Message: "working set yielded a node that is not a member of the graph",
				Node:    nodeString(n),
			}
		}

		r.seq++
		if err := r.process(n); err != nil {
			return err
		}
	}
}

// process runs one visit of node n: entry-state computation, transfer,
// combination, convergence check, and successor re-enqueue.
//
// Client lattice and transfer code is the only code here that can panic;
// such panics are contained and surfaced as UNEXPECTED_FAILURE errors so no
// failure escapes the loop unclassified.
func (r *fixpointRun[N, S, F, C]) process(n N) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &EngineError{
				Code:    CodeUnexpectedFailure,
				Message: "panic during node processing",
				Node:    nodeString(n),
				Cause:   fmt.Errorf("%v", rec),
			}
		}
	}()

	node := nodeString(n)
	r.engine.metrics.RecordVisit(r.runID)
	if r.engine.stats != nil {
		r.engine.stats.recordVisit(node)
	}
	r.engine.emitEvent(r.runID, r.seq, node, "node_visit", nil)

	entry, err := r.entryState(n)
	if err != nil {
		return err
	}

	// Fresh store per visit; the transfer populates it as a side effect.
	inner := r.engine.graph.MakeInternalStore(entry)

	start := time.Now()
	post, err := r.semantics(n, entry, r.oracle, inner)
	latency := time.Since(start)
	if err != nil {
		r.engine.metrics.RecordTransferLatency(r.runID, node, latency, "error")
		return &EngineError{
			Code:    CodeTransferFailure,
			Message: "transfer function failed",
			Node:    node,
			Cause:   err,
		}
	}
	r.engine.metrics.RecordTransferLatency(r.runID, node, latency, "success")

	return r.combine(n, post, inner)
}

// entryState computes the state holding just before n executes: the lub of
// the node's seed (if present) with the edge-transformed post-states of its
// stored predecessors. Contribution order does not matter; lub is
// commutative and associative.
func (r *fixpointRun[N, S, F, C]) entryState(n N) (S, error) {
	var entry S
	var zero S
	has := false

	if seed, ok := r.starting[n]; ok {
		entry = seed
		has = true
	}

	for _, p := range r.engine.graph.Predecessors(n) {
		pair, stored := r.pairs[p]
		if !stored {
			continue
		}
		edge, ok := r.engine.graph.EdgeConnecting(p, n)
		if !ok {
			return zero, &EngineError{
				Code:    CodeEntryComputationFailed,
				Message: "no edge connecting stored predecessor " + nodeString(p),
				Node:    nodeString(n),
			}
		}
		contrib, err := edge.Traverse(pair.post)
		if err != nil {
			return zero, &EngineError{
				Code:    CodeEntryComputationFailed,
				Message: "edge traversal from predecessor " + nodeString(p) + " failed",
				Node:    nodeString(n),
				Cause:   err,
			}
		}
		if !has {
			entry = contrib
			has = true
			continue
		}
		entry, err = entry.Lub(contrib)
		if err != nil {
			return zero, &EngineError{
				Code:    CodeEntryComputationFailed,
				Message: "join of predecessor contributions failed",
				Node:    nodeString(n),
				Cause:   err,
			}
		}
	}

	if !has {
		return zero, &EngineError{
			Code:    CodeMissingEntryState,
			Message: "node has no seed and no stored predecessor",
			Node:    nodeString(n),
		}
	}
	return entry, nil
}

// combine merges the freshly computed pair with the stored one, decides
// whether the node grew, and re-enqueues successors on growth.
func (r *fixpointRun[N, S, F, C]) combine(n N, post S, inner F) error {
	node := nodeString(n)

	old, stored := r.pairs[n]
	if !stored {
		r.pairs[n] = resultPair[S, F]{post: post, inner: inner}
		return r.stored(n, node, store.OpFirst)
	}

	widen := false
	if r.widenAfter > 0 {
		k, initialized := r.counters[n]
		if !initialized {
			k = r.widenAfter * len(r.engine.graph.Predecessors(n))
		}
		r.counters[n] = k - 1
		// A node with no predecessors starts at zero and widens on its
		// first revisit.
		widen = k <= 0
	}

	var combinedPost S
	var combinedInner F
	var err error
	op := store.OpLub
	if widen {
		op = store.OpWiden
		combinedPost, err = old.post.Widening(post)
		if err == nil {
			combinedInner, err = old.inner.Widening(inner)
		}
		r.engine.metrics.RecordWidening(r.runID)
		if r.engine.stats != nil {
			r.engine.stats.recordWidening(node)
		}
	} else {
		combinedPost, err = post.Lub(old.post)
		if err == nil {
			combinedInner, err = inner.Lub(old.inner)
		}
		r.engine.metrics.RecordJoin(r.runID)
		if r.engine.stats != nil {
			r.engine.stats.recordJoin(node)
		}
	}
	if err != nil {
		return &EngineError{
			Code:    CodeCombinationFailed,
			Message: "combination of stored and new values failed",
			Node:    node,
			Cause:   err,
		}
	}

	converged, err := combinedPost.LessOrEqual(old.post)
	if err == nil && converged {
		var innerLeq bool
		innerLeq, err = combinedInner.LessOrEqual(old.inner)
		converged = converged && innerLeq
	}
	if err != nil {
		return &EngineError{
			Code:    CodeCombinationFailed,
			Message: "convergence comparison failed",
			Node:    node,
			Cause:   err,
		}
	}

	if converged {
		// No growth: keep the stored pair, do not wake successors.
		r.engine.emitEvent(r.runID, r.seq, node, "node_stable", map[string]interface{}{"op": op})
		return r.record(node, op, false)
	}

	r.pairs[n] = resultPair[S, F]{post: combinedPost, inner: combinedInner}
	return r.stored(n, node, op)
}

// stored records a grown (or first) pair and re-enqueues every successor.
func (r *fixpointRun[N, S, F, C]) stored(n N, node, op string) error {
	if op == store.OpWiden {
		r.engine.emitEvent(r.runID, r.seq, node, "widening_applied", nil)
	}
	r.engine.emitEvent(r.runID, r.seq, node, "node_stored", map[string]interface{}{"op": op})

	succs := r.engine.graph.Successors(n)
	for _, s := range succs {
		r.push(s)
	}
	r.engine.metrics.RecordReenqueue(r.runID, len(succs))
	if r.engine.stats != nil {
		r.engine.stats.recordReenqueue(len(succs))
	}

	return r.record(node, op, true)
}

// record writes one visit to the trace store, if one is attached.
func (r *fixpointRun[N, S, F, C]) record(node, op string, grew bool) error {
	if r.engine.trace == nil {
		return nil
	}
	rec := store.VisitRecord{
		RunID: r.runID,
		Seq:   r.seq,
		Node:  node,
		Op:    op,
		Grew:  grew,
	}
	if err := r.engine.trace.SaveVisit(r.ctx, rec); err != nil {
		return &EngineError{
			Code:    CodeUnexpectedFailure,
			Message: "trace store write failed",
			Node:    node,
			Cause:   err,
		}
	}
	return nil
}

// push adds a node to the working set and tracks pending depth.
func (r *fixpointRun[N, S, F, C]) push(n N) {
	r.ws.Push(n)
	r.depth++
	r.engine.metrics.UpdateWorklistDepth(r.depth)
}

// flatten produces the final result map: every outer node's post-state
// overlaid with every inner entry of its intermediate store. Outer and
// inner key sets are disjoint within a single graph.
func (r *fixpointRun[N, S, F, C]) flatten() map[N]S {
	result := make(map[N]S, len(r.pairs))
	for n, pair := range r.pairs {
		result[n] = pair.post
		for in, s := range pair.inner.Entries() {
			result[in] = s
		}
	}
	return result
}

// emitEvent sends one observability event if an emitter is attached.
func (e *Engine[N, S, F, C]) emitEvent(runID string, seq int, node, msg string, meta map[string]interface{}) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{
		RunID: runID,
		Seq:   seq,
		Node:  node,
		Msg:   msg,
		Meta:  meta,
	})
}

// emitError reports a failed run through the emitter.
func (e *Engine[N, S, F, C]) emitError(runID string, seq int, err error) {
	if e.emitter == nil {
		return
	}
	meta := map[string]interface{}{"error": err.Error()}
	var ee *EngineError
	node := ""
	if errors.As(err, &ee) {
		meta["code"] = ee.Code
		node = ee.Node
	}
	e.emitter.Emit(emit.Event{
		RunID: runID,
		Seq:   seq,
		Node:  node,
		Msg:   "fixpoint_error",
		Meta:  meta,
	})
}
