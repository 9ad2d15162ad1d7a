package emit

import (
	"context"
	"sync"
)

// BufferedEmitter implements Emitter by storing events in memory.
//
// This emitter captures all events and provides query capabilities for
// iteration history analysis. Events are organized by runID for efficient
// retrieval and filtering.
//
// Use cases:
//   - Development and debugging of convergence behavior
//   - Testing and validation (assert on the iteration sequence)
//   - Post-computation analysis of widening activity
//
// Warning: all events are kept in memory. For large graphs with slow
// convergence, clear finished runs or use a persistent trace sink instead.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	engine := fixpoint.New[string, Env, *fixpoint.StateMap[string, Env], struct{}](g,
//	    fixpoint.WithEmitter(emitter))
//
//	result, _ := engine.Fixpoint(ctx, "run-001", starting, oracle, ws, 5, transfer)
//
//	widenings := emitter.HistoryWithFilter("run-001", emit.HistoryFilter{Msg: "widening_applied"})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events
}

// HistoryFilter specifies criteria for filtering iteration history.
//
// All fields are optional. When multiple fields are set they are combined
// with AND logic.
type HistoryFilter struct {
	Node   string // Filter by node identity (empty = no filter)
	Msg    string // Filter by event name (empty = no filter)
	MinSeq *int   // Minimum visit sequence number (nil = no filter)
	MaxSeq *int   // Maximum visit sequence number (nil = no filter)
}

// NewBufferedEmitter creates a new BufferedEmitter. Safe for concurrent
// use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer, keyed by its runID.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// EmitBatch stores multiple events in order.
func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, event := range events {
		b.events[event.RunID] = append(b.events[event.RunID], event)
	}
	return nil
}

// Flush is a no-op: the buffer is the backend.
func (b *BufferedEmitter) Flush(_ context.Context) error {
	return nil
}

// History retrieves all events for a specific runID, in emission order.
// Returns an empty slice when no events exist. The returned slice is a
// copy.
func (b *BufferedEmitter) History(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[runID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// HistoryWithFilter retrieves the events for runID matching the filter, in
// emission order. All filter conditions must match (AND logic). The
// returned slice is a copy.
//
// Example:
//
//	// All stores of the loop head after visit 10.
//	min := 10
//	filter := emit.HistoryFilter{Node: "loop", Msg: "node_stored", MinSeq: &min}
//	stores := emitter.HistoryWithFilter("run-001", filter)
func (b *BufferedEmitter) HistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if !matchesFilter(event, filter) {
			continue
		}
		result = append(result, event)
	}
	return result
}

// matchesFilter checks if an event matches the filter criteria.
func matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.Node != "" && event.Node != filter.Node {
		return false
	}
	if filter.Msg != "" && event.Msg != filter.Msg {
		return false
	}
	if filter.MinSeq != nil && event.Seq < *filter.MinSeq {
		return false
	}
	if filter.MaxSeq != nil && event.Seq > *filter.MaxSeq {
		return false
	}
	return true
}

// Clear removes stored events. A non-empty runID clears that run only; an
// empty runID clears everything.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
	} else {
		delete(b.events, runID)
	}
}
