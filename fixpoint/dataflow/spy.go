package dataflow

import "github.com/dshills/fixpoint-go/fixpoint"

// SpyCounters accumulates lattice-operation counts across every Spy value
// sharing it. Use it in tests to assert how the engine exercised a domain, for
// example that a zero widening threshold never invokes Widening.
type SpyCounters struct {
	Lubs        int
	Widenings   int
	Comparisons int
}

// Spy wraps a lattice element and counts the operations invoked on it,
// delegating the actual lattice math to the wrapped value.
//
// All Spy values of one computation must share a single *SpyCounters;
// Wrap threads the counter through every derived value.
//
// Example:
//
//	counters := &dataflow.SpyCounters{}
//	start := dataflow.Wrap(dataflow.NewEnv().With("x", dataflow.Of(0)), counters)
//	// ... run the engine over Spy[dataflow.Env] states ...
//	if counters.Widenings != 0 {
//	    t.Errorf("expected no widenings, got %d", counters.Widenings)
//	}
type Spy[S fixpoint.Element[S]] struct {
	Value S
	C     *SpyCounters
}

// Wrap creates a Spy around value, charging operations to counters.
func Wrap[S fixpoint.Element[S]](value S, counters *SpyCounters) Spy[S] {
	return Spy[S]{Value: value, C: counters}
}

// Lub counts the operation and delegates to the wrapped value.
func (s Spy[S]) Lub(other Spy[S]) (Spy[S], error) {
	s.C.Lubs++
	v, err := s.Value.Lub(other.Value)
	if err != nil {
		return Spy[S]{}, err
	}
	return Spy[S]{Value: v, C: s.C}, nil
}

// Widening counts the operation and delegates to the wrapped value.
func (s Spy[S]) Widening(next Spy[S]) (Spy[S], error) {
	s.C.Widenings++
	v, err := s.Value.Widening(next.Value)
	if err != nil {
		return Spy[S]{}, err
	}
	return Spy[S]{Value: v, C: s.C}, nil
}

// LessOrEqual counts the comparison and delegates to the wrapped value.
func (s Spy[S]) LessOrEqual(other Spy[S]) (bool, error) {
	s.C.Comparisons++
	return s.Value.LessOrEqual(other.Value)
}
