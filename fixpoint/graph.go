package fixpoint

// Edge represents a directed connection between two nodes of a graph.
//
// An edge carries a pure transformation that lifts an abstract state from
// its source's post-state to its target's entry contribution. No two edges
// of a graph share the same (source, target) pair.
type Edge[N comparable, S any] interface {
	// Source returns the node this edge leaves.
	Source() N

	// Target returns the node this edge enters.
	Target() N

	// Traverse transforms a state as it crosses this edge. It must be pure:
	// identical inputs yield identical outputs, and the receiver is never
	// mutated.
	Traverse(state S) (S, error)
}

// Graph is the adjacency structure the engine iterates over.
//
// A Graph is immutable for the duration of a fixpoint computation: the
// engine only queries it, and transfer functions must not mutate it.
//
// The MakeInternalStore factory is the hook through which the concrete
// graph supplies fresh intermediate stores to the driver; it takes the
// entry state of the node about to be processed so implementations can
// pre-seed the store if their domain requires it.
//
// Type parameters: N is the node identity type (opaque, comparable,
// hashable), S the abstract state type, F the intermediate store type.
type Graph[N comparable, S, F any] interface {
	// Nodes returns every node of the graph. The order is stable across
	// calls on an unmodified graph; the engine relies on it to seed the
	// working set deterministically.
	Nodes() []N

	// Contains reports whether n is a member of the graph's node set.
	Contains(n N) bool

	// Predecessors returns the nodes with an edge into n.
	Predecessors(n N) []N

	// Successors returns the nodes with an edge out of n.
	Successors(n N) []N

	// EdgeConnecting returns the unique edge from src to dst, if any.
	EdgeConnecting(src, dst N) (Edge[N, S], bool)

	// MakeInternalStore returns a fresh, empty intermediate store for a
	// node whose entry state is entry.
	MakeInternalStore(entry S) F
}

// Semantics is the abstract transfer function of a client analysis.
//
// Given a node and its entry state, it computes the node's post-state. It
// may populate inner with states for the node's inner nodes as a side
// effect, and it may consult the call-graph oracle to resolve cross-graph
// queries; the engine mediates neither.
//
// A Semantics must be deterministic: identical (node, entry) inputs must
// yield an identical post-state and identical inner-store population. It
// may signal a domain-specific computation failure by returning an error,
// which aborts the entire fixpoint call.
//
// Type parameter C is the call-graph oracle type. The engine never
// inspects the oracle; it is threaded through verbatim.
type Semantics[N comparable, S, F, C any] func(node N, entry S, oracle C, inner F) (S, error)
