package fixpoint

import "fmt"

// Error codes reported by the engine. Every failure inside the fixpoint
// loop carries one of these machine-readable codes alongside the offending
// node's identity.
const (
	// CodeUnknownNode: the working set yielded a node that is not a member
	// of the graph's node set, or a starting point names such a node. A
	// nil or otherwise absent identity is reported under the same code.
	CodeUnknownNode = "UNKNOWN_NODE"

	// CodeMissingEntryState: the current node has neither a seed in the
	// starting points nor a stored predecessor to contribute an entry
	// state. Cannot occur for nodes reachable from the starting set in a
	// well-formed graph.
	CodeMissingEntryState = "MISSING_ENTRY_STATE"

	// CodeTransferFailure: the client transfer function signaled a
	// computation failure.
	CodeTransferFailure = "TRANSFER_FAILURE"

	// CodeEntryComputationFailed: traversing a predecessor edge or joining
	// the predecessor contributions failed.
	CodeEntryComputationFailed = "ENTRY_COMPUTATION_FAILED"

	// CodeCombinationFailed: the lub, widening, or ordering comparison of
	// stored and new values failed.
	CodeCombinationFailed = "COMBINATION_FAILED"

	// CodeUnexpectedFailure: any other failure during the loop, including
	// panics recovered from client lattice or transfer code.
	CodeUnexpectedFailure = "UNEXPECTED_FAILURE"
)

// EngineError is the structured error type returned by the engine.
//
// Every error aborts the entire fixpoint call: no partial result is
// returned, nothing is retried, and no stored state is modified by the
// failure path.
type EngineError struct {
	// Code is a machine-readable error code (see the Code constants).
	Code string

	// Message is a human-readable description suitable for logs.
	Message string

	// Node is the rendered identity of the offending node, when one is
	// known. Empty for failures not attributable to a single node.
	Node string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Node != "" {
		msg = "node " + e.Node + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// nodeString renders an opaque node identity for error reporting and
// observability. Nodes only need to be comparable; this is the one place
// the engine turns them into text.
func nodeString(n any) string {
	return fmt.Sprintf("%v", n)
}
