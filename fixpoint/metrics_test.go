package fixpoint

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusMetrics_CollectedDuringRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	stats := NewRunStats()

	g := NewAdjacencyGraph[string, intState](intStore)
	for _, n := range []string{"A", "B", "C"} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s) failed: %v", n, err)
		}
	}
	_ = g.AddEdge("A", "B", nil)
	_ = g.AddEdge("B", "B", nil)
	_ = g.AddEdge("B", "C", nil)

	semantics := func(node string, entry intState, _ *stubOracle, _ *StateMap[string, intState]) (intState, error) {
		if node == "B" && !entry.top {
			return intState{v: entry.v + 1}, nil
		}
		return entry, nil
	}

	engine := New[string, intState, *StateMap[string, intState], *stubOracle](g,
		WithMetrics(metrics), WithStats(stats))
	_, err := engine.Fixpoint(context.Background(), "metrics-run",
		map[string]intState{"A": {v: 0}}, &stubOracle{},
		NewFIFOWorkingSet[string](), 2, semantics)
	if err != nil {
		t.Fatalf("Fixpoint failed: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	byName := make(map[string]float64)
	histCounts := make(map[string]uint64)
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				byName[fam.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				byName[fam.GetName()] += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				histCounts[fam.GetName()] += m.GetHistogram().GetSampleCount()
			}
		}
	}

	if got := byName["fixpoint_visits_total"]; got != float64(stats.TotalVisits()) {
		t.Errorf("expected visits_total %d, got %v", stats.TotalVisits(), got)
	}
	if got := byName["fixpoint_widenings_total"]; got != float64(stats.TotalWidenings()) {
		t.Errorf("expected widenings_total %d, got %v", stats.TotalWidenings(), got)
	}
	if got := byName["fixpoint_joins_total"]; got != float64(stats.TotalJoins()) {
		t.Errorf("expected joins_total %d, got %v", stats.TotalJoins(), got)
	}
	if got := byName["fixpoint_worklist_depth"]; got != 0 {
		t.Errorf("expected empty worklist at completion, gauge=%v", got)
	}
	if got := histCounts["fixpoint_transfer_latency_ms"]; got != uint64(stats.TotalVisits()) {
		t.Errorf("expected one latency sample per visit (%d), got %d", stats.TotalVisits(), got)
	}
}

func TestPrometheusMetrics_NilSafe(t *testing.T) {
	// A nil collector must be callable from the engine without panics.
	var pm *PrometheusMetrics
	pm.RecordVisit("run")
	pm.RecordJoin("run")
	pm.RecordWidening("run")
	pm.RecordReenqueue("run", 2)
	pm.UpdateWorklistDepth(1)
	pm.RecordTransferLatency("run", "node", 0, "success")
}

func TestPrometheusMetrics_Disable(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	metrics.Disable()

	metrics.RecordVisit("run")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != "fixpoint_visits_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			if m.GetCounter().GetValue() != 0 {
				t.Errorf("expected no recording while disabled, got %v", m.GetCounter().GetValue())
			}
		}
	}

	metrics.Enable()
	metrics.RecordVisit("run")

	families, err = registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	total := 0.0
	for _, fam := range families {
		if fam.GetName() != "fixpoint_visits_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if total != 1 {
		t.Errorf("expected exactly one recorded visit after re-enable, got %v", total)
	}
}
