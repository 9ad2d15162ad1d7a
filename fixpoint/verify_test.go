package fixpoint

import (
	"context"
	"errors"
	"testing"
)

func buildVerifyFixture(t *testing.T) (*AdjacencyGraph[string, intState, *StateMap[string, intState]], map[string]intState, Semantics[string, intState, *StateMap[string, intState], *stubOracle]) {
	t.Helper()
	g := NewAdjacencyGraph[string, intState](intStore)
	for _, n := range []string{"A", "B", "C"} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s) failed: %v", n, err)
		}
	}
	_ = g.AddEdge("A", "B", nil)
	_ = g.AddEdge("B", "C", nil)

	semantics := func(node string, entry intState, _ *stubOracle, _ *StateMap[string, intState]) (intState, error) {
		if node == "A" {
			return entry, nil
		}
		return intState{v: entry.v + 1}, nil
	}
	starting := map[string]intState{"A": {v: 0}}
	return g, starting, semantics
}

func TestVerify_AcceptsComputedFixpoint(t *testing.T) {
	g, starting, semantics := buildVerifyFixture(t)

	engine := New[string, intState, *StateMap[string, intState], *stubOracle](g)
	result, err := engine.Fixpoint(context.Background(), "verify",
		starting, &stubOracle{}, NewFIFOWorkingSet[string](), 5, semantics)
	if err != nil {
		t.Fatalf("Fixpoint failed: %v", err)
	}

	if err := Verify[string, intState, *StateMap[string, intState], *stubOracle](g, result, starting, &stubOracle{}, semantics); err != nil {
		t.Errorf("Verify rejected a computed fixpoint: %v", err)
	}
}

func TestVerify_RejectsUnderApproximation(t *testing.T) {
	g, starting, semantics := buildVerifyFixture(t)

	// C claims less than one transfer pass from B produces.
	bogus := map[string]intState{
		"A": {v: 0},
		"B": {v: 1},
		"C": {v: 0},
	}

	err := Verify[string, intState, *StateMap[string, intState], *stubOracle](g, bogus, starting, &stubOracle{}, semantics)
	var ve *VerificationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *VerificationError, got %v", err)
	}
	if ve.Node != "C" {
		t.Errorf("expected violation at C, got %q", ve.Node)
	}
}

func TestVerify_IgnoresInnerEntries(t *testing.T) {
	g, starting, _ := buildVerifyFixture(t)

	semantics := func(node string, entry intState, _ *stubOracle, inner *StateMap[string, intState]) (intState, error) {
		if node == "B" {
			inner.Put("B#0", intState{v: 99})
		}
		if node == "A" {
			return entry, nil
		}
		return intState{v: entry.v + 1}, nil
	}

	engine := New[string, intState, *StateMap[string, intState], *stubOracle](g)
	result, err := engine.Fixpoint(context.Background(), "verify-inner",
		starting, &stubOracle{}, NewFIFOWorkingSet[string](), 5, semantics)
	if err != nil {
		t.Fatalf("Fixpoint failed: %v", err)
	}
	if _, ok := result["B#0"]; !ok {
		t.Fatal("expected inner entry in the flattened result")
	}

	// The inner key is not a graph node; Verify must skip it.
	if err := Verify[string, intState, *StateMap[string, intState], *stubOracle](g, result, starting, &stubOracle{}, semantics); err != nil {
		t.Errorf("Verify must ignore inner entries, got %v", err)
	}
}

func TestVerify_ReportsTransferFailure(t *testing.T) {
	g, starting, _ := buildVerifyFixture(t)

	failing := func(node string, entry intState, _ *stubOracle, _ *StateMap[string, intState]) (intState, error) {
		if node == "B" {
			return intState{}, errors.New("abstract division by zero")
		}
		return entry, nil
	}

	candidate := map[string]intState{"A": {v: 0}, "B": {v: 1}}
	err := Verify[string, intState, *StateMap[string, intState], *stubOracle](g, candidate, starting, &stubOracle{}, failing)

	var ve *VerificationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *VerificationError, got %v", err)
	}
	if ve.Node != "B" || ve.Cause == nil {
		t.Errorf("expected transfer failure at B with a cause, got %+v", ve)
	}
}
