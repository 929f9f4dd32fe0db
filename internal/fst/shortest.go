package fst

// #region shortest-distance
// ShortestToFinal computes, for every state, the cost of the cheapest
// path to completion: single-source shortest distance over the reversed
// automaton in the tropical cost semiring (costs sum along a path, the
// cheapest of competing paths wins). Unreachable states get Inf. The
// result is used as an admissible future-cost table and is cached by
// the caller for the session.
func ShortestToFinal(a *Automaton, key int) []float64 {
	n := a.NumStates()
	dist := make([]float64, n)
	for i := range dist {
		dist[i] = Inf
	}

	// Reverse adjacency: incoming arcs per state.
	incoming := make([][]Arc, n)
	for s := 0; s < n; s++ {
		for _, arc := range a.Arcs(s) {
			incoming[arc.To] = append(incoming[arc.To], arc)
		}
	}

	queue := make([]int, 0, len(a.Finals))
	queued := make([]bool, n)
	for s, cost := range a.Finals {
		if s < n && cost < dist[s] {
			dist[s] = cost
			queue = append(queue, s)
			queued[s] = true
		}
	}

	// Worklist relaxation; re-queues only states whose distance improved.
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		queued[s] = false
		for _, arc := range incoming[s] {
			cand := arc.W.At(key) + dist[s]
			if cand < dist[arc.From] {
				dist[arc.From] = cand
				if !queued[arc.From] {
					queue = append(queue, arc.From)
					queued[arc.From] = true
				}
			}
		}
	}
	return dist
}

// #endregion shortest-distance
