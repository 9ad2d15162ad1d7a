package emit

import "context"

// NullEmitter implements Emitter by discarding all events.
//
// Use it to disable event emission without changing engine wiring, or in
// benchmarks where observability overhead would skew measurements.
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
//
// Returns an emitter that discards all events without any processing. It is
// safe for concurrent use and has zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event without any processing.
func (n *NullEmitter) Emit(event Event) {
	// No-op: discard the event.
}

// EmitBatch discards all events without any processing.
func (n *NullEmitter) EmitBatch(_ context.Context, _ []Event) error {
	return nil
}

// Flush is a no-op: there is never anything buffered.
func (n *NullEmitter) Flush(_ context.Context) error {
	return nil
}
