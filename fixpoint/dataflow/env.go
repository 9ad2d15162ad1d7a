package dataflow

import (
	"sort"
	"strings"
)

// Env is a functional environment mapping variable names to intervals.
//
// A variable absent from the environment is bottom, so lattice operations
// are pointwise with absence treated as the least element, the same
// convention the engine's StateMap uses for inner nodes.
//
// Env values are immutable: With returns a copy and the lattice operations
// return new environments. The zero Env is the empty environment.
type Env struct {
	vars map[string]Interval
}

// NewEnv returns an empty environment.
func NewEnv() Env {
	return Env{}
}

// With returns a copy of the environment with name bound to iv.
func (e Env) With(name string, iv Interval) Env {
	vars := make(map[string]Interval, len(e.vars)+1)
	for k, v := range e.vars {
		vars[k] = v
	}
	vars[name] = iv
	return Env{vars: vars}
}

// Get returns the interval bound to name, or bottom if unbound.
func (e Env) Get(name string) Interval {
	if iv, ok := e.vars[name]; ok {
		return iv
	}
	return Bottom()
}

// Len returns the number of bound variables.
func (e Env) Len() int {
	return len(e.vars)
}

// Lub returns the pointwise convex hull of the receiver and other.
func (e Env) Lub(other Env) (Env, error) {
	vars := make(map[string]Interval, len(e.vars)+len(other.vars))
	for k, v := range e.vars {
		if o, ok := other.vars[k]; ok {
			joined, err := v.Lub(o)
			if err != nil {
				return Env{}, err
			}
			vars[k] = joined
			continue
		}
		vars[k] = v
	}
	for k, o := range other.vars {
		if _, ok := e.vars[k]; !ok {
			vars[k] = o
		}
	}
	return Env{vars: vars}, nil
}

// Widening returns the pointwise widening of the receiver with next.
// Applied as old.Widening(new).
func (e Env) Widening(next Env) (Env, error) {
	vars := make(map[string]Interval, len(e.vars)+len(next.vars))
	for k, v := range e.vars {
		if o, ok := next.vars[k]; ok {
			widened, err := v.Widening(o)
			if err != nil {
				return Env{}, err
			}
			vars[k] = widened
			continue
		}
		vars[k] = v
	}
	for k, o := range next.vars {
		if _, ok := e.vars[k]; !ok {
			vars[k] = o
		}
	}
	return Env{vars: vars}, nil
}

// LessOrEqual reports whether every binding of the receiver is included in
// the corresponding binding of other.
func (e Env) LessOrEqual(other Env) (bool, error) {
	for k, v := range e.vars {
		leq, err := v.LessOrEqual(other.Get(k))
		if err != nil {
			return false, err
		}
		if !leq {
			return false, nil
		}
	}
	return true, nil
}

// Equal reports whether both environments bind the same variables to equal
// intervals. Bottom bindings count as absent.
func (e Env) Equal(other Env) bool {
	for k, v := range e.vars {
		if v.IsBottom() {
			continue
		}
		if !other.Get(k).Equal(v) {
			return false
		}
	}
	for k, v := range other.vars {
		if v.IsBottom() {
			continue
		}
		if !e.Get(k).Equal(v) {
			return false
		}
	}
	return true
}

// String renders the environment with variables in sorted order.
func (e Env) String() string {
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(e.vars[k].String())
	}
	b.WriteString("}")
	return b.String()
}
