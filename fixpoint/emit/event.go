package emit

// Event represents an observability event emitted during a fixpoint
// computation.
//
// Events provide insight into iteration behavior:
//   - Computation start/complete
//   - Node visits, stores, and stabilizations
//   - Widening applications
//   - Errors
//
// Events are emitted to an Emitter which can:
//   - Log to stdout/stderr or files
//   - Send to OpenTelemetry
//   - Keep them in memory for later queries
type Event struct {
	// RunID identifies the fixpoint computation that emitted this event.
	RunID string

	// Seq is the visit sequence number within the computation (1-indexed).
	// Zero for fixpoint_start and for errors raised while seeding;
	// fixpoint_complete and errors raised in the loop carry the number of
	// the last visit.
	Seq int

	// Node is the rendered identity of the node this event concerns.
	// Empty for fixpoint_start and fixpoint_complete; fixpoint_error carries
	// the offending node when one is known.
	Node string

	// Msg is a short event name: fixpoint_start, node_visit, node_stored,
	// node_stable, widening_applied, fixpoint_error, fixpoint_complete.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "op": combination operation (first, lub, widen)
	//   - "error": error details
	//   - "code": engine error code
	//   - "visits": total visit count at completion
	Meta map[string]interface{}
}
