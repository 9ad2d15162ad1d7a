package fixpoint_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/dshills/fixpoint-go/fixpoint"
	"github.com/dshills/fixpoint-go/fixpoint/dataflow"
	"github.com/dshills/fixpoint-go/fixpoint/emit"
	"github.com/dshills/fixpoint-go/fixpoint/store"
)

type noOracle struct{}

func envStore(_ dataflow.Env) *fixpoint.StateMap[string, dataflow.Env] {
	return fixpoint.NewStateMap[string, dataflow.Env]()
}

// buildLoopGraph models:
//
//	entry: x := 0
//	loop:  x := x + 1; goto loop or exit
func buildLoopGraph(t *testing.T) *fixpoint.AdjacencyGraph[string, dataflow.Env, *fixpoint.StateMap[string, dataflow.Env]] {
	t.Helper()
	g := fixpoint.NewAdjacencyGraph[string, dataflow.Env](envStore)
	for _, n := range []string{"entry", "loop", "exit"} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s) failed: %v", n, err)
		}
	}
	for _, e := range [][2]string{{"entry", "loop"}, {"loop", "loop"}, {"loop", "exit"}} {
		if err := g.AddEdge(e[0], e[1], nil); err != nil {
			t.Fatalf("AddEdge(%s, %s) failed: %v", e[0], e[1], err)
		}
	}
	return g
}

func incrementLoop(node string, entry dataflow.Env, _ noOracle, _ *fixpoint.StateMap[string, dataflow.Env]) (dataflow.Env, error) {
	if node == "loop" {
		return entry.With("x", entry.Get("x").AddConst(1)), nil
	}
	return entry, nil
}

func TestIntegration_IntervalLoopAnalysis(t *testing.T) {
	g := buildLoopGraph(t)

	emitter := emit.NewBufferedEmitter()
	trace := store.NewMemStore()
	stats := fixpoint.NewRunStats()

	engine := fixpoint.New[string, dataflow.Env, *fixpoint.StateMap[string, dataflow.Env], noOracle](g,
		fixpoint.WithEmitter(emitter),
		fixpoint.WithTraceStore(trace),
		fixpoint.WithStats(stats),
	)

	starting := map[string]dataflow.Env{
		"entry": dataflow.NewEnv().With("x", dataflow.Of(0)),
	}

	result, err := engine.Fixpoint(context.Background(), "intervals",
		starting, noOracle{}, fixpoint.NewFIFOWorkingSet[string](), 2, incrementLoop)
	if err != nil {
		t.Fatalf("Fixpoint failed: %v", err)
	}

	// The loop increments without bound; widening must cut the chain at
	// [1, +inf], and the exit observes the widened value.
	if got := result["loop"].Get("x"); !got.Equal(dataflow.AtLeast(1)) {
		t.Errorf("expected loop x = [1, +inf], got %s", got)
	}
	if got := result["exit"].Get("x"); !got.Equal(dataflow.AtLeast(1)) {
		t.Errorf("expected exit x = [1, +inf], got %s", got)
	}
	if got := result["entry"].Get("x"); !got.Equal(dataflow.Of(0)) {
		t.Errorf("expected entry x = [0, 0], got %s", got)
	}

	t.Run("widening observable through every sink", func(t *testing.T) {
		if stats.Widenings("loop") == 0 {
			t.Error("stats: expected widenings on the loop head")
		}

		widenEvents := emitter.HistoryWithFilter("intervals", emit.HistoryFilter{Msg: "widening_applied"})
		if len(widenEvents) == 0 {
			t.Error("emitter: expected widening_applied events")
		}

		records, err := trace.Visits(context.Background(), "intervals")
		if err != nil {
			t.Fatalf("trace store read failed: %v", err)
		}
		if len(records) != stats.TotalVisits() {
			t.Errorf("trace: expected %d records, got %d", stats.TotalVisits(), len(records))
		}
		sawWiden := false
		for _, r := range records {
			if r.Op == store.OpWiden {
				sawWiden = true
			}
		}
		if !sawWiden {
			t.Error("trace: expected a widen record")
		}
	})

	t.Run("result is a post-fixpoint", func(t *testing.T) {
		err := fixpoint.Verify[string, dataflow.Env, *fixpoint.StateMap[string, dataflow.Env], noOracle](
			g, result, starting, noOracle{}, incrementLoop)
		if err != nil {
			t.Errorf("Verify rejected the computed fixpoint: %v", err)
		}
	})
}

func TestIntegration_WorkingSetDisciplinesAgree(t *testing.T) {
	run := func(ws fixpoint.WorkingSet[string]) map[string]dataflow.Env {
		g := buildLoopGraph(t)
		engine := fixpoint.New[string, dataflow.Env, *fixpoint.StateMap[string, dataflow.Env], noOracle](g)
		result, err := engine.Fixpoint(context.Background(), "discipline",
			map[string]dataflow.Env{"entry": dataflow.NewEnv().With("x", dataflow.Of(0))},
			noOracle{}, ws, 2, incrementLoop)
		if err != nil {
			t.Fatalf("Fixpoint failed: %v", err)
		}
		return result
	}

	rpo := map[string]int{"entry": 0, "loop": 1, "exit": 2}
	results := map[string]map[string]dataflow.Env{
		"fifo":     run(fixpoint.NewFIFOWorkingSet[string]()),
		"lifo":     run(fixpoint.NewLIFOWorkingSet[string]()),
		"priority": run(fixpoint.NewPriorityWorkingSet(func(a, b string) bool { return rpo[a] < rpo[b] })),
	}

	// Different pop orders may take different iteration paths, but for this
	// program they must agree on the invariants at every program point.
	for name, result := range results {
		for _, node := range []string{"loop", "exit"} {
			if got := result[node].Get("x"); !got.Equal(dataflow.AtLeast(1)) {
				t.Errorf("%s: expected %s x = [1, +inf], got %s", name, node, got)
			}
		}
	}
}

func TestIntegration_SpyConfirmsNoWideningAtZeroThreshold(t *testing.T) {
	type spyEnv = dataflow.Spy[dataflow.Env]

	g := fixpoint.NewAdjacencyGraph[string, spyEnv](func(_ spyEnv) *fixpoint.StateMap[string, spyEnv] {
		return fixpoint.NewStateMap[string, spyEnv]()
	})
	for _, n := range []string{"A", "B", "C", "D"} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s) failed: %v", n, err)
		}
	}
	for _, e := range [][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}} {
		if err := g.AddEdge(e[0], e[1], nil); err != nil {
			t.Fatalf("AddEdge(%s, %s) failed: %v", e[0], e[1], err)
		}
	}

	counters := &dataflow.SpyCounters{}
	semantics := func(node string, entry spyEnv, _ noOracle, _ *fixpoint.StateMap[string, spyEnv]) (spyEnv, error) {
		switch node {
		case "B":
			return dataflow.Wrap(entry.Value.With("x", dataflow.Of(1)), counters), nil
		case "C":
			return dataflow.Wrap(entry.Value.With("x", dataflow.Of(2)), counters), nil
		default:
			return entry, nil
		}
	}

	engine := fixpoint.New[string, spyEnv, *fixpoint.StateMap[string, spyEnv], noOracle](g)
	result, err := engine.Fixpoint(context.Background(), "spy",
		map[string]spyEnv{"A": dataflow.Wrap(dataflow.NewEnv().With("x", dataflow.Of(0)), counters)},
		noOracle{}, fixpoint.NewFIFOWorkingSet[string](), 0, semantics)
	if err != nil {
		t.Fatalf("Fixpoint failed: %v", err)
	}

	if counters.Widenings != 0 {
		t.Errorf("widen threshold 0 must never invoke Widening, saw %d", counters.Widenings)
	}
	if counters.Lubs == 0 {
		t.Error("expected the join point to exercise Lub")
	}
	if got := result["D"].Value.Get("x"); !got.Equal(dataflow.Range(1, 2)) {
		t.Errorf("expected D x = [1, 2], got %s", got)
	}
}

func TestIntegration_DeterministicEventSequence(t *testing.T) {
	visitSequence := func() []string {
		g := buildLoopGraph(t)
		emitter := emit.NewBufferedEmitter()
		engine := fixpoint.New[string, dataflow.Env, *fixpoint.StateMap[string, dataflow.Env], noOracle](g,
			fixpoint.WithEmitter(emitter))
		_, err := engine.Fixpoint(context.Background(), "seq",
			map[string]dataflow.Env{"entry": dataflow.NewEnv().With("x", dataflow.Of(0))},
			noOracle{}, fixpoint.NewFIFOWorkingSet[string](), 2, incrementLoop)
		if err != nil {
			t.Fatalf("Fixpoint failed: %v", err)
		}
		var seq []string
		for _, e := range emitter.HistoryWithFilter("seq", emit.HistoryFilter{Msg: "node_visit"}) {
			seq = append(seq, e.Node)
		}
		return seq
	}

	first := visitSequence()
	second := visitSequence()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical visit sequences, got %v vs %v", first, second)
	}
}
