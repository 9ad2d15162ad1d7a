package fixpoint

// StateMap is a functional-lattice intermediate store: a mapping from inner
// nodes to abstract states with pointwise lattice operations.
//
// A key absent from the map is treated as bottom. Consequently:
//   - Lub takes the union of the key sets, joining states pointwise where
//     both maps bind a key.
//   - Widening widens pointwise where both maps bind a key and adopts the
//     bound value where only one does.
//   - LessOrEqual holds when every binding of the receiver is less than or
//     equal to the corresponding binding of the other map.
//
// Transfer functions populate a fresh StateMap through Put; the lattice
// operations themselves are functional and return new maps, leaving both
// operands untouched.
//
// StateMap satisfies InnerStore[N, S, *StateMap[N, S]].
type StateMap[N comparable, S Element[S]] struct {
	entries map[N]S
}

// NewStateMap creates an empty StateMap.
func NewStateMap[N comparable, S Element[S]]() *StateMap[N, S] {
	return &StateMap[N, S]{entries: make(map[N]S)}
}

// Put binds node to state, replacing any previous binding.
func (m *StateMap[N, S]) Put(node N, state S) {
	m.entries[node] = state
}

// Get returns the state bound to node and whether a binding exists.
func (m *StateMap[N, S]) Get(node N) (S, bool) {
	s, ok := m.entries[node]
	return s, ok
}

// Len returns the number of bindings.
func (m *StateMap[N, S]) Len() int {
	return len(m.entries)
}

// Entries returns a snapshot of the (inner node, state) bindings.
func (m *StateMap[N, S]) Entries() map[N]S {
	out := make(map[N]S, len(m.entries))
	for n, s := range m.entries {
		out[n] = s
	}
	return out
}

// Lub returns the pointwise least upper bound of the receiver and other.
func (m *StateMap[N, S]) Lub(other *StateMap[N, S]) (*StateMap[N, S], error) {
	result := NewStateMap[N, S]()
	for n, s := range m.entries {
		if o, ok := other.entries[n]; ok {
			joined, err := s.Lub(o)
			if err != nil {
				return nil, err
			}
			result.entries[n] = joined
			continue
		}
		result.entries[n] = s
	}
	for n, o := range other.entries {
		if _, ok := m.entries[n]; !ok {
			result.entries[n] = o
		}
	}
	return result, nil
}

// Widening returns the pointwise widening of the receiver with next. It is
// applied as old.Widening(new), matching the orientation of Element.
func (m *StateMap[N, S]) Widening(next *StateMap[N, S]) (*StateMap[N, S], error) {
	result := NewStateMap[N, S]()
	for n, s := range m.entries {
		if o, ok := next.entries[n]; ok {
			widened, err := s.Widening(o)
			if err != nil {
				return nil, err
			}
			result.entries[n] = widened
			continue
		}
		result.entries[n] = s
	}
	for n, o := range next.entries {
		if _, ok := m.entries[n]; !ok {
			result.entries[n] = o
		}
	}
	return result, nil
}

// LessOrEqual reports whether every binding of the receiver is less than or
// equal to the corresponding binding of other. A key bound by the receiver
// but absent from other compares against bottom and yields false.
func (m *StateMap[N, S]) LessOrEqual(other *StateMap[N, S]) (bool, error) {
	for n, s := range m.entries {
		o, ok := other.entries[n]
		if !ok {
			return false, nil
		}
		leq, err := s.LessOrEqual(o)
		if err != nil {
			return false, err
		}
		if !leq {
			return false, nil
		}
	}
	return true, nil
}
