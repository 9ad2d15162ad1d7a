package fixpoint

// TraverseFunc is the state transformation carried by an edge of an
// AdjacencyGraph. It must be pure (see Edge.Traverse).
type TraverseFunc[S any] func(state S) (S, error)

// Identity returns a TraverseFunc that passes states through unchanged.
// Use it for edges that carry no transformation of their own.
func Identity[S any]() TraverseFunc[S] {
	return func(state S) (S, error) { return state, nil }
}

// edgeKey identifies an edge by its ordered endpoint pair.
type edgeKey[N comparable] struct {
	src, dst N
}

// adjacencyEdge is the Edge implementation used by AdjacencyGraph.
type adjacencyEdge[N comparable, S any] struct {
	src, dst N
	traverse TraverseFunc[S]
}

func (e *adjacencyEdge[N, S]) Source() N { return e.src }
func (e *adjacencyEdge[N, S]) Target() N { return e.dst }

func (e *adjacencyEdge[N, S]) Traverse(state S) (S, error) {
	return e.traverse(state)
}

// AdjacencyGraph is a concrete Graph backed by adjacency lists.
//
// Nodes and edges are registered with AddNode and AddEdge during
// construction; once a fixpoint computation starts, the graph must not be
// modified. Node enumeration and predecessor/successor queries preserve
// insertion order, which keeps engine runs deterministic.
//
// The store factory passed to NewAdjacencyGraph supplies the
// MakeInternalStore hook required by the Graph contract.
//
// Example:
//
//	g := fixpoint.NewAdjacencyGraph[string, MyState](func(entry MyState) *fixpoint.StateMap[string, MyState] {
//	    return fixpoint.NewStateMap[string, MyState]()
//	})
//	_ = g.AddNode("a")
//	_ = g.AddNode("b")
//	_ = g.AddEdge("a", "b", fixpoint.Identity[MyState]())
type AdjacencyGraph[N comparable, S, F any] struct {
	nodes     map[N]struct{}
	order     []N
	preds     map[N][]N
	succs     map[N][]N
	edges     map[edgeKey[N]]*adjacencyEdge[N, S]
	makeStore func(entry S) F
}

// NewAdjacencyGraph creates an empty AdjacencyGraph whose MakeInternalStore
// hook delegates to makeStore. makeStore must not be nil.
func NewAdjacencyGraph[N comparable, S, F any](makeStore func(entry S) F) *AdjacencyGraph[N, S, F] {
	return &AdjacencyGraph[N, S, F]{
		nodes:     make(map[N]struct{}),
		preds:     make(map[N][]N),
		succs:     make(map[N][]N),
		edges:     make(map[edgeKey[N]]*adjacencyEdge[N, S]),
		makeStore: makeStore,
	}
}

// AddNode registers a node in the graph.
//
// Returns an error if the node is already present.
func (g *AdjacencyGraph[N, S, F]) AddNode(n N) error {
	if _, exists := g.nodes[n]; exists {
		return &EngineError{
			Code:    "DUPLICATE_NODE",
			Message: "node already present in graph",
			Node:    nodeString(n),
		}
	}
	g.nodes[n] = struct{}{}
	g.order = append(g.order, n)
	return nil
}

// AddEdge registers a directed edge from src to dst carrying the given
// transformation. A nil traverse is treated as the identity.
//
// Returns an error if either endpoint is missing or an edge with the same
// (src, dst) pair already exists.
func (g *AdjacencyGraph[N, S, F]) AddEdge(src, dst N, traverse TraverseFunc[S]) error {
	if _, exists := g.nodes[src]; !exists {
		return &EngineError{
			Code:    "UNKNOWN_NODE",
			Message: "edge source not present in graph",
			Node:    nodeString(src),
		}
	}
	if _, exists := g.nodes[dst]; !exists {
		return &EngineError{
			Code:    "UNKNOWN_NODE",
			Message: "edge target not present in graph",
			Node:    nodeString(dst),
		}
	}
	key := edgeKey[N]{src: src, dst: dst}
	if _, exists := g.edges[key]; exists {
		return &EngineError{
			Code:    "DUPLICATE_EDGE",
			Message: "edge already present in graph",
			Node:    nodeString(src),
		}
	}
	if traverse == nil {
		traverse = Identity[S]()
	}
	g.edges[key] = &adjacencyEdge[N, S]{src: src, dst: dst, traverse: traverse}
	g.succs[src] = append(g.succs[src], dst)
	g.preds[dst] = append(g.preds[dst], src)
	return nil
}

// Nodes returns the graph's nodes in insertion order.
func (g *AdjacencyGraph[N, S, F]) Nodes() []N {
	out := make([]N, len(g.order))
	copy(out, g.order)
	return out
}

// Contains reports whether n is a member of the graph.
func (g *AdjacencyGraph[N, S, F]) Contains(n N) bool {
	_, exists := g.nodes[n]
	return exists
}

// Predecessors returns the nodes with an edge into n, in edge insertion
// order.
func (g *AdjacencyGraph[N, S, F]) Predecessors(n N) []N {
	return g.preds[n]
}

// Successors returns the nodes with an edge out of n, in edge insertion
// order.
func (g *AdjacencyGraph[N, S, F]) Successors(n N) []N {
	return g.succs[n]
}

// EdgeConnecting returns the edge from src to dst, if one exists.
func (g *AdjacencyGraph[N, S, F]) EdgeConnecting(src, dst N) (Edge[N, S], bool) {
	e, ok := g.edges[edgeKey[N]{src: src, dst: dst}]
	if !ok {
		return nil, false
	}
	return e, true
}

// MakeInternalStore returns a fresh intermediate store by delegating to the
// factory supplied at construction.
func (g *AdjacencyGraph[N, S, F]) MakeInternalStore(entry S) F {
	return g.makeStore(entry)
}
