package fixpoint

// VerificationError reports the first node at which a candidate result
// failed the post-fixpoint check.
type VerificationError struct {
	// Node is the rendered identity of the violating node.
	Node string

	// Message describes the violation.
	Message string

	// Cause is the underlying error, if the check itself failed.
	Cause error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	msg := "node " + e.Node + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// Verify checks that result is a post-fixpoint of the transfer function
// over the graph: for every graph node with a result entry, one more
// transfer pass from the node's entry state (the seed joined with the
// edge-transformed results of its predecessors) must not grow the stored
// value.
//
// Because the engine is deterministic, a map returned by a successful
// Fixpoint call always verifies; Verify exists to validate externally
// produced or persisted-and-reloaded candidates, and as a harness for
// soundness tests of client domains.
//
// Inner-node entries in result are ignored: they are not members of the
// graph and have no transfer function of their own.
//
// Returns nil on success, or a *VerificationError naming the first
// violating node. Nodes are checked in the graph's enumeration order.
func Verify[N comparable, S Element[S], F InnerStore[N, S, F], C any](
	g Graph[N, S, F],
	result map[N]S,
	startingPoints map[N]S,
	oracle C,
	semantics Semantics[N, S, F, C],
) error {
	for _, n := range g.Nodes() {
		stored, ok := result[n]
		if !ok {
			continue
		}

		var entry S
		has := false
		if seed, present := startingPoints[n]; present {
			entry = seed
			has = true
		}
		for _, p := range g.Predecessors(n) {
			prev, present := result[p]
			if !present {
				continue
			}
			edge, found := g.EdgeConnecting(p, n)
			if !found {
				return &VerificationError{
					Node:    nodeString(n),
					Message: "no edge connecting predecessor " + nodeString(p),
				}
			}
			contrib, err := edge.Traverse(prev)
			if err != nil {
				return &VerificationError{
					Node:    nodeString(n),
					Message: "edge traversal failed",
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
				return &VerificationError{
					Node:    nodeString(n),
					Message: "join of predecessor contributions failed",
					Cause:   err,
				}
			}
		}
		if !has {
			// Unreachable from the result's own support; nothing to check.
			continue
		}

		inner := g.MakeInternalStore(entry)
		post, err := semantics(n, entry, oracle, inner)
		if err != nil {
			return &VerificationError{
				Node:    nodeString(n),
				Message: "transfer function failed",
				Cause:   err,
			}
		}

		leq, err := post.LessOrEqual(stored)
		if err != nil {
			return &VerificationError{
				Node:    nodeString(n),
				Message: "ordering comparison failed",
				Cause:   err,
			}
		}
		if !leq {
			return &VerificationError{
				Node:    nodeString(n),
				Message: "transfer pass grows the stored value: result is not a post-fixpoint",
			}
		}
	}
	return nil
}
