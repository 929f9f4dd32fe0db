package fst

// Graph surgery used by the recursive-transition-network expansion:
// sub-automaton splicing, weighted epsilon removal, and dead-state
// trimming. All weights here stay in the file's additive-cost domain;
// sign conversion to log-probability happens in the predictors.

// #region splice
// Splice copies sub into a with fresh state ids and bridges it into the
// position of a nonterminal arc from src to dst: an epsilon entry arc
// carrying entryCost into sub's start, and an epsilon exit arc from
// each of sub's final states into dst carrying that final's cost. The
// nonterminal arc itself is not removed here.
func (a *Automaton) Splice(sub *Automaton, src, dst int, entryCost float64, key int) {
	if sub.Start == NoState {
		return
	}
	base := a.NumStates()
	for i := 0; i < sub.NumStates(); i++ {
		a.NewState()
	}
	for s := 0; s < sub.NumStates(); s++ {
		for _, arc := range sub.Arcs(s) {
			a.AddArc(Arc{
				From:   base + s,
				To:     base + arc.To,
				Label:  arc.Label,
				OLabel: arc.OLabel,
				W:      Scalar(arc.W.At(key)),
			})
		}
	}
	a.AddArc(Arc{From: src, To: base + sub.Start, Label: Epsilon, OLabel: Epsilon, W: Scalar(entryCost)})
	for s, cost := range sub.Finals {
		a.AddArc(Arc{From: base + s, To: dst, Label: Epsilon, OLabel: Epsilon, W: Scalar(cost)})
	}
}

// #endregion splice

// #region rmepsilon
// RemoveEpsilon eliminates all epsilon arcs. For every state the
// epsilon closure is computed in the cost domain (cheapest epsilon path
// per reachable state), the closure members' non-epsilon arcs and final
// costs are folded back onto the state, and the epsilon arcs are
// dropped. The score mapping of the automaton is unchanged.
func (a *Automaton) RemoveEpsilon(key int) {
	n := a.NumStates()
	for s := 0; s < n; s++ {
		closure := a.epsClosure(s, key)
		if closure == nil {
			continue
		}
		for t, d := range closure {
			if t == s {
				continue
			}
			for _, arc := range a.Arcs(t) {
				if arc.OLabel == Epsilon {
					continue
				}
				a.arcs[s] = append(a.arcs[s], Arc{
					From:   s,
					To:     arc.To,
					Label:  arc.Label,
					OLabel: arc.OLabel,
					W:      Scalar(d + arc.W.At(key)),
				})
			}
			if cost, ok := a.Finals[t]; ok {
				a.SetFinal(s, d+cost)
			}
		}
	}
	for s := 0; s < n; s++ {
		kept := a.arcs[s][:0]
		for _, arc := range a.arcs[s] {
			if arc.OLabel != Epsilon {
				kept = append(kept, arc)
			}
		}
		a.arcs[s] = kept
	}
	a.Sorted = false
}

// epsClosure returns the cheapest epsilon-only distance from s to every
// epsilon-reachable state, or nil if s has no epsilon arcs at all.
func (a *Automaton) epsClosure(s, key int) map[int]float64 {
	hasEps := false
	for _, arc := range a.Arcs(s) {
		if arc.OLabel == Epsilon {
			hasEps = true
			break
		}
	}
	if !hasEps {
		return nil
	}
	dist := map[int]float64{s: 0}
	queue := []int{s}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for _, arc := range a.Arcs(t) {
			if arc.OLabel != Epsilon {
				continue
			}
			cand := dist[t] + arc.W.At(key)
			if old, ok := dist[arc.To]; !ok || cand < old {
				dist[arc.To] = cand
				queue = append(queue, arc.To)
			}
		}
	}
	return dist
}

// #endregion rmepsilon

// #region trim
// Trim removes states that are unreachable from the start state or
// cannot reach a final state, renumbering the survivors. Callers that
// hold state ids across a Trim must re-derive them; the RTN predictor
// re-derives its frontier from consumed history on every call.
func (a *Automaton) Trim(key int) {
	if a.Start == NoState {
		return
	}
	n := a.NumStates()

	forward := make([]bool, n)
	stack := []int{a.Start}
	forward[a.Start] = true
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, arc := range a.Arcs(s) {
			if !forward[arc.To] {
				forward[arc.To] = true
				stack = append(stack, arc.To)
			}
		}
	}

	dist := ShortestToFinal(a, key)
	remap := make([]int, n)
	for i := range remap {
		remap[i] = NoState
	}

	out := New()
	for s := 0; s < n; s++ {
		if forward[s] && dist[s] < Inf {
			remap[s] = out.NewState()
		}
	}
	if remap[a.Start] == NoState {
		*a = *New()
		return
	}
	out.Start = remap[a.Start]
	for s, cost := range a.Finals {
		if remap[s] != NoState {
			out.SetFinal(remap[s], cost)
		}
	}
	for s := 0; s < n; s++ {
		if remap[s] == NoState {
			continue
		}
		for _, arc := range a.Arcs(s) {
			if remap[arc.To] == NoState {
				continue
			}
			out.AddArc(Arc{
				From:   remap[s],
				To:     remap[arc.To],
				Label:  arc.Label,
				OLabel: arc.OLabel,
				W:      arc.W,
			})
		}
	}
	*a = *out
}

// #endregion trim
