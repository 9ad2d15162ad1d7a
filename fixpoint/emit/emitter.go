// Package emit provides event emission and observability for fixpoint
// computations.
package emit

import "context"

// Emitter receives and processes observability events from the engine.
//
// Emitters enable pluggable observability backends:
//   - Logging: stdout, files, syslog.
//   - Distributed tracing: OpenTelemetry.
//   - In-memory buffering for tests and post-run queries.
//
// The engine calls Emit synchronously from its single-threaded loop, so
// implementations should be fast; buffer or discard when the backend is
// slow. An emitter is injected configuration and is never part of
// correctness: the computed fixpoint is identical with or without one.
//
// Implementations should be resilient: handle backend failures gracefully
// and never panic.
type Emitter interface {
	// Emit sends one observability event to the configured backend.
	//
	// Emit should not block the fixpoint loop. If the backend is
	// unavailable or slow, events should be buffered for later delivery or
	// dropped with internal error logging. Emit must not panic.
	Emit(event Event)

	// EmitBatch sends multiple events in a single operation.
	//
	// Batching amortizes backend round-trips when draining buffers.
	// Implementations should process events in order, handle partial
	// failures gracefully, and not panic.
	//
	// Returns an error only on catastrophic failures; individual event
	// failures should be logged internally.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush ensures all buffered events are delivered to the backend.
	//
	// The engine calls Flush once after a successful computation. Call it
	// yourself before shutdown to prevent event loss. Implementations
	// should respect context cancellation and be safe to call repeatedly.
	Flush(ctx context.Context) error
}
