package fixpoint

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RunStats collects per-node iteration accounting for a fixpoint
// computation: how often each node was visited, and how the engine combined
// revisits (lub vs widening).
//
// Attach a RunStats to an engine with WithStats to diagnose convergence
// behavior (which join points burn iterations, whether the widening
// threshold fires, how one working-set discipline compares to another) and
// to drive termination assertions in tests.
//
// A RunStats may be reused across runs; counts accumulate until Reset.
type RunStats struct {
	mu         sync.Mutex
	visits     map[string]int
	joins      map[string]int
	widenings  map[string]int
	reenqueues int
}

// NodeStats is the per-node slice of a stats summary.
type NodeStats struct {
	// Node is the rendered node identity.
	Node string

	// Visits counts how often the node was popped and processed.
	Visits int

	// Joins counts revisits combined with lub.
	Joins int

	// Widenings counts revisits combined with widening.
	Widenings int
}

// NewRunStats creates an empty stats collector.
func NewRunStats() *RunStats {
	return &RunStats{
		visits:    make(map[string]int),
		joins:     make(map[string]int),
		widenings: make(map[string]int),
	}
}

func (s *RunStats) recordVisit(node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits[node]++
}

func (s *RunStats) recordJoin(node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins[node]++
}

func (s *RunStats) recordWidening(node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widenings[node]++
}

func (s *RunStats) recordReenqueue(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reenqueues += count
}

// Visits returns how often the given node was processed.
func (s *RunStats) Visits(node string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits[node]
}

// TotalVisits returns the number of node visits across the whole run.
func (s *RunStats) TotalVisits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, v := range s.visits {
		total += v
	}
	return total
}

// Widenings returns how often the given node was combined with widening.
func (s *RunStats) Widenings(node string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.widenings[node]
}

// TotalWidenings returns the number of widening combinations across the run.
func (s *RunStats) TotalWidenings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, v := range s.widenings {
		total += v
	}
	return total
}

// TotalJoins returns the number of lub combinations across the run.
func (s *RunStats) TotalJoins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, v := range s.joins {
		total += v
	}
	return total
}

// Reenqueues returns the number of successor pushes caused by growth.
func (s *RunStats) Reenqueues() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reenqueues
}

// PerNode returns per-node statistics sorted by node identity.
func (s *RunStats) PerNode() []NodeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make(map[string]struct{}, len(s.visits))
	for n := range s.visits {
		nodes[n] = struct{}{}
	}
	for n := range s.joins {
		nodes[n] = struct{}{}
	}
	for n := range s.widenings {
		nodes[n] = struct{}{}
	}

	out := make([]NodeStats, 0, len(nodes))
	for n := range nodes {
		out = append(out, NodeStats{
			Node:      n,
			Visits:    s.visits[n],
			Joins:     s.joins[n],
			Widenings: s.widenings[n],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// Summary renders a human-readable report of the collected statistics.
//
// Example output:
//
//	Fixpoint Statistics
//	===================
//	Total Visits:    8
//	Total Joins:     4
//	Total Widenings: 1
//	Reenqueues:      7
//
//	Per-Node:
//	  entry  visits=1 joins=0 widenings=0
//	  exit  visits=2 joins=1 widenings=0
//	  loop  visits=5 joins=3 widenings=1
func (s *RunStats) Summary() string {
	perNode := s.PerNode()

	var b strings.Builder
	b.WriteString("Fixpoint Statistics\n")
	b.WriteString("===================\n")
	fmt.Fprintf(&b, "Total Visits:    %d\n", s.TotalVisits())
	fmt.Fprintf(&b, "Total Joins:     %d\n", s.TotalJoins())
	fmt.Fprintf(&b, "Total Widenings: %d\n", s.TotalWidenings())
	fmt.Fprintf(&b, "Reenqueues:      %d\n", s.Reenqueues())

	if len(perNode) > 0 {
		b.WriteString("\nPer-Node:\n")
		for _, ns := range perNode {
			fmt.Fprintf(&b, "  %s  visits=%d joins=%d widenings=%d\n",
				ns.Node, ns.Visits, ns.Joins, ns.Widenings)
		}
	}

	return b.String()
}

// Reset clears all collected counts so the collector can be reused.
func (s *RunStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = make(map[string]int)
	s.joins = make(map[string]int)
	s.widenings = make(map[string]int)
	s.reenqueues = 0
}
