package fst

import (
	"math"
	"sort"
)

// #region constants
// Epsilon is the reserved empty-label id. Traversing an epsilon arc
// consumes no input symbol. 0 is never a vocabulary id.
const Epsilon = 0

// NoState marks an invalid or absent state id.
const NoState = -1

// Inf is the semiring zero in the additive-cost domain: no known path.
var Inf = math.Inf(1)

// #endregion constants

// #region weight
// Weight is an arc weight in the additive-cost domain. It is either a
// plain scalar or a sparse component map when several predictors share
// one automaton. Component key 0 is reserved and always present in
// sparse weights.
type Weight struct {
	Value      float64
	Components map[int]float64
}

// At resolves the weight for one component key: the exact key if
// present, component 0 otherwise, the scalar for plain weights.
func (w Weight) At(key int) float64 {
	if w.Components == nil {
		return w.Value
	}
	if v, ok := w.Components[key]; ok {
		return v
	}
	return w.Components[0]
}

// Scalar wraps a plain float as a Weight.
func Scalar(v float64) Weight {
	return Weight{Value: v}
}

// #endregion weight

// #region arc
// Arc is a labeled, weighted edge. Input and output labels are equal in
// this system's usage but both are kept, matching the file format.
type Arc struct {
	From   int
	To     int
	Label  int
	OLabel int
	W      Weight
}

// #endregion arc

// #region automaton
// Automaton is a weighted directed graph of states and labeled arcs.
// Arcs are grouped by source state. When Sorted is true every state's
// arcs are ordered by output label, so a scan for a target label may
// stop at the first arc whose label exceeds it.
type Automaton struct {
	Start  int
	Finals map[int]float64
	Sorted bool

	arcs [][]Arc
}

// New returns an empty automaton with no start state.
func New() *Automaton {
	return &Automaton{
		Start:  NoState,
		Finals: make(map[int]float64),
	}
}

// NumStates returns the number of allocated state ids.
func (a *Automaton) NumStates() int {
	return len(a.arcs)
}

// NewState allocates a fresh state id.
func (a *Automaton) NewState() int {
	a.arcs = append(a.arcs, nil)
	return len(a.arcs) - 1
}

func (a *Automaton) ensure(state int) {
	for len(a.arcs) <= state {
		a.arcs = append(a.arcs, nil)
	}
}

// Arcs returns the outgoing arcs of a state. The returned slice is
// owned by the automaton and must not be mutated by callers.
func (a *Automaton) Arcs(state int) []Arc {
	if state < 0 || state >= len(a.arcs) {
		return nil
	}
	return a.arcs[state]
}

// AddArc appends an outgoing arc and grows the state table as needed.
func (a *Automaton) AddArc(arc Arc) {
	a.ensure(arc.From)
	a.ensure(arc.To)
	a.arcs[arc.From] = append(a.arcs[arc.From], arc)
	a.Sorted = false
}

// DeleteArc removes the idx-th outgoing arc of a state.
func (a *Automaton) DeleteArc(state, idx int) {
	arcs := a.arcs[state]
	a.arcs[state] = append(arcs[:idx], arcs[idx+1:]...)
	a.Sorted = false
}

// SetFinal marks a state final with the given cost. The lower of two
// competing final costs wins.
func (a *Automaton) SetFinal(state int, cost float64) {
	a.ensure(state)
	if old, ok := a.Finals[state]; !ok || cost < old {
		a.Finals[state] = cost
	}
}

// Final reports whether a state is final and its cost.
func (a *Automaton) Final(state int) (float64, bool) {
	w, ok := a.Finals[state]
	return w, ok
}

// ArcSort orders every state's arcs by output label, enabling early
// termination scans. Idempotent.
func (a *Automaton) ArcSort() {
	if a.Sorted {
		return
	}
	for _, arcs := range a.arcs {
		sort.SliceStable(arcs, func(i, j int) bool {
			return arcs[i].OLabel < arcs[j].OLabel
		})
	}
	a.Sorted = true
}

// #endregion automaton
