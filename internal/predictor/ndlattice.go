package predictor

import (
	"sort"

	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/fst"
	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/logging"
)

// #region type
// NDLatticePredictor scores against nondeterministic lattices. The
// traversal state is an epsilon-closed frontier of scored nodes: every
// member has at least one non-epsilon outgoing arc; epsilon-only nodes
// are transited through during closure but never exposed. When several
// paths reach the same label or node, the best score wins — a Viterbi
// approximation of the true marginal, adopted for efficiency.
type NDLatticePredictor struct {
	cfg Config
	log *logging.Log

	cur       *fst.Automaton
	frontier  []WeightedState
	distances []float64
}

// NewNDLatticePredictor creates a nondeterministic lattice predictor.
func NewNDLatticePredictor(cfg Config, log *logging.Log) *NDLatticePredictor {
	return &NDLatticePredictor{
		cfg: cfg,
		log: log.Named("nfst"),
	}
}

// #endregion type

// #region initialize
// Initialize loads the sequence's lattice, closes the start state over
// epsilon arcs, and consumes the begin marker.
func (p *NDLatticePredictor) Initialize(seq int) {
	p.log.SetSequence(seq + 1)
	p.distances = nil
	p.frontier = nil
	a, err := fst.Load(p.cfg.Path, seq+1)
	if err != nil {
		p.log.Warnf("no lattice for sequence %d: %v", seq+1, err)
		p.cur = nil
		return
	}
	p.cur = a
	if a.Start != fst.NoState {
		p.frontier = p.followEps(map[int]float64{a.Start: 0})
	}
	p.Consume(p.cfg.Vocab.BOS)
	if len(p.frontier) == 0 {
		p.log.Warnf("lattice for sequence %d contains no path starting with the begin marker %d",
			seq+1, p.cfg.Vocab.BOS)
	}
}

// #endregion initialize

// #region predict
// PredictNext aggregates the non-epsilon arcs leaving every frontier
// member, keeping the best score per label. Epsilon arcs need no
// following here: Consume leaves the frontier closed.
func (p *NDLatticePredictor) PredictNext() Posterior {
	if p.cur == nil || len(p.frontier) == 0 {
		return Posterior{}
	}
	factor := p.cfg.weightFactor()
	scores := make(Posterior)
	for _, ws := range p.frontier {
		for _, arc := range p.cur.Arcs(ws.Node) {
			if arc.OLabel == fst.Epsilon {
				continue
			}
			score := ws.Score + factor*arc.W.At(p.cfg.WeightKey)
			if old, ok := scores[arc.OLabel]; !ok || p.cfg.better(score, old) {
				scores[arc.OLabel] = score
			}
		}
	}
	return Finalize(scores, p.cfg.UseWeights, p.cfg.Normalize)
}

// #endregion predict

// #region consume
// Consume follows every arc labeled exactly symbol from every frontier
// member (no unknown fallback), keeps the best score per destination,
// renormalizes against the best resulting score — the implicit baseline
// of the previous PredictNext — and epsilon-closes the result. The
// baseline subtraction is skipped for the begin-marker consume when the
// begin weight is configured to be kept. An unmatched symbol empties
// the frontier permanently.
func (p *NDLatticePredictor) Consume(symbol int) float64 {
	if p.cur == nil {
		return 0
	}
	factor := p.cfg.weightFactor()
	reached := make(map[int]float64)
	for _, ws := range p.frontier {
		for _, arc := range p.cur.Arcs(ws.Node) {
			if arc.OLabel != symbol {
				continue
			}
			score := ws.Score + factor*arc.W.At(p.cfg.WeightKey)
			if old, ok := reached[arc.To]; !ok || p.cfg.better(score, old) {
				reached[arc.To] = score
			}
		}
	}
	if len(reached) == 0 {
		p.frontier = nil
		return 0
	}

	consumed := 0.0
	if symbol != p.cfg.Vocab.BOS || p.cfg.SkipBosWeight {
		first := true
		for _, score := range reached {
			if first || p.cfg.better(score, consumed) {
				consumed = score
				first = false
			}
		}
	}
	roots := make(map[int]float64, len(reached))
	for node, score := range reached {
		roots[node] = score - consumed
	}
	p.frontier = p.followEps(roots)
	return consumed
}

// #endregion consume

// #region closure
// followEps expands roots breadth-first along epsilon arcs, updating
// the best known score per newly reached node and re-expanding only
// nodes whose score improved, until no score improves. A node with any
// non-epsilon arc joins the closed frontier. The result is sorted by
// node id, the canonical snapshot form.
func (p *NDLatticePredictor) followEps(roots map[int]float64) []WeightedState {
	factor := p.cfg.weightFactor()
	open := make(map[int]float64, len(roots))
	visited := make(map[int]float64, len(roots))
	for node, score := range roots {
		open[node] = score
		visited[node] = score
	}
	closed := make(map[int]float64)
	for len(open) > 0 {
		next := make(map[int]float64)
		for node, score := range open {
			hasNonEps := false
			for _, arc := range p.cur.Arcs(node) {
				if arc.OLabel != fst.Epsilon {
					hasNonEps = true
					continue
				}
				cand := score + factor*arc.W.At(p.cfg.WeightKey)
				if old, ok := visited[arc.To]; !ok || p.cfg.better(cand, old) {
					visited[arc.To] = cand
					next[arc.To] = cand
				}
			}
			if hasNonEps {
				if old, ok := closed[node]; !ok || p.cfg.better(score, old) {
					closed[node] = score
				}
			}
		}
		open = next
	}

	frontier := make([]WeightedState, 0, len(closed))
	for node, score := range closed {
		frontier = append(frontier, WeightedState{Score: score, Node: node})
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i].Node < frontier[j].Node })
	return frontier
}

// #endregion closure

// #region state
// GetState returns a deep copy of the frontier.
func (p *NDLatticePredictor) GetState() State {
	snap := make([]WeightedState, len(p.frontier))
	copy(snap, p.frontier)
	return snap
}

// SetState restores a frontier snapshot, copying it so later branches
// of the search never alias the live predictor.
func (p *NDLatticePredictor) SetState(s State) {
	frontier, ok := s.([]WeightedState)
	if !ok {
		p.log.Errorf("frontier snapshot has type %T, expected []WeightedState", s)
		p.frontier = nil
		return
	}
	p.frontier = make([]WeightedState, len(frontier))
	copy(p.frontier, frontier)
}

// IsEqual compares two frontier snapshots by their node-id sets only,
// ignoring scores and order.
func (p *NDLatticePredictor) IsEqual(a, b State) bool {
	fa, ok := a.([]WeightedState)
	if !ok {
		return false
	}
	fb, ok := b.([]WeightedState)
	if !ok {
		return false
	}
	if len(fa) != len(fb) {
		return false
	}
	na := frontierNodes(fa)
	nb := frontierNodes(fb)
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

func frontierNodes(frontier []WeightedState) []int {
	nodes := make([]int, len(frontier))
	for i, ws := range frontier {
		nodes[i] = ws.Node
	}
	sort.Ints(nodes)
	return nodes
}

// #endregion state

// #region unk
// UnkScore is always negative infinity: symbols outside the lattice are
// impossible according to this predictor.
func (p *NDLatticePredictor) UnkScore(post Posterior) float64 {
	return NegInf
}

// #endregion unk

// #region heuristic
// InitializeHeuristic computes the shortest remaining distance from
// every node to completion, once per load.
func (p *NDLatticePredictor) InitializeHeuristic(seq int) {
	if p.cur == nil {
		return
	}
	p.distances = fst.ShortestToFinal(p.cur, p.cfg.WeightKey)
}

// EstimateFutureCost returns the minimum remaining distance over
// frontier members with an arc labeled the hypothesis's last symbol,
// 0 when none match.
func (p *NDLatticePredictor) EstimateFutureCost(h Hypothesis) float64 {
	if p.cur == nil || p.distances == nil {
		return 0
	}
	last, ok := h.Last()
	if !ok {
		return 0
	}
	best := fst.Inf
	found := false
	for _, ws := range p.frontier {
		for _, arc := range p.cur.Arcs(ws.Node) {
			if arc.OLabel == last {
				if d := p.distances[arc.To]; d < best {
					best = d
				}
				found = true
				break
			}
		}
	}
	if !found {
		return 0
	}
	return best
}

// #endregion heuristic
