package predictor

import (
	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/fst"
	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/logging"
)

// #region type
// LatticePredictor scores against a determinized lattice: at most one
// arc per label leaves any state, so the traversal state is a single
// node id. NoState marks the permanently-invalid condition.
type LatticePredictor struct {
	cfg Config
	log *logging.Log

	cur       *fst.Automaton
	node      int
	bosScore  float64
	distances []float64
}

// NewLatticePredictor creates a deterministic lattice predictor.
func NewLatticePredictor(cfg Config, log *logging.Log) *LatticePredictor {
	return &LatticePredictor{
		cfg:  cfg,
		log:  log.Named("fst"),
		node: fst.NoState,
	}
}

// #endregion type

// #region initialize
// Initialize loads the sequence's lattice and consumes the begin
// marker. The begin arc's weight is captured so it can be folded onto
// the end-marker score when SkipBosWeight is off.
func (p *LatticePredictor) Initialize(seq int) {
	p.log.SetSequence(seq + 1)
	p.distances = nil
	p.bosScore = 0
	a, err := fst.Load(p.cfg.Path, seq+1)
	if err != nil {
		p.log.Warnf("no lattice for sequence %d: %v", seq+1, err)
		p.cur = nil
		p.node = fst.NoState
		return
	}
	p.cur = a
	p.node = a.Start
	p.bosScore = p.Consume(p.cfg.Vocab.BOS)
	if p.node == fst.NoState {
		p.log.Warnf("lattice for sequence %d contains no path through the begin marker %d",
			seq+1, p.cfg.Vocab.BOS)
	}
}

// #endregion initialize

// #region predict
// PredictNext builds the next-symbol scores from the outgoing arcs of
// the active node.
func (p *LatticePredictor) PredictNext() Posterior {
	if p.cur == nil || p.node == fst.NoState {
		return Posterior{}
	}
	factor := p.cfg.weightFactor()
	scores := make(Posterior)
	for _, arc := range p.cur.Arcs(p.node) {
		scores[arc.OLabel] = factor * arc.W.At(p.cfg.WeightKey)
	}
	if _, ok := scores[p.cfg.Vocab.EOS]; ok && !p.cfg.SkipBosWeight {
		scores[p.cfg.Vocab.EOS] += p.bosScore
	}
	return Finalize(scores, p.cfg.UseWeights, p.cfg.Normalize)
}

// #endregion predict

// #region consume
// Consume follows the arc labeled with symbol and returns its weight.
// Without a match it falls back to an unknown-word arc (weight read as
// 0) if one exists; otherwise the predictor becomes invalid for the
// rest of the sequence.
func (p *LatticePredictor) Consume(symbol int) float64 {
	if p.cur == nil || p.node == fst.NoState {
		return 0
	}
	from := p.node
	p.node = fst.NoState
	unkNext := fst.NoState
	for _, arc := range p.cur.Arcs(from) {
		if arc.OLabel == symbol {
			p.node = arc.To
			return p.cfg.weightFactor() * arc.W.At(p.cfg.WeightKey)
		}
		if arc.OLabel == p.cfg.Vocab.UNK {
			unkNext = arc.To
		}
	}
	if unkNext != fst.NoState {
		p.node = unkNext
	}
	return 0
}

// #endregion consume

// #region state
// GetState returns the active node id.
func (p *LatticePredictor) GetState() State {
	return p.node
}

// SetState restores the active node id.
func (p *LatticePredictor) SetState(s State) {
	node, ok := s.(int)
	if !ok {
		p.log.Errorf("lattice snapshot has type %T, expected int", s)
		p.node = fst.NoState
		return
	}
	p.node = node
}

// IsEqual compares two node snapshots.
func (p *LatticePredictor) IsEqual(a, b State) bool {
	return a == b
}

// #endregion state

// #region unk
// UnkScore looks the unknown-word id up in the already-computed
// distribution, negative infinity when absent.
func (p *LatticePredictor) UnkScore(post Posterior) float64 {
	if v, ok := post[p.cfg.Vocab.UNK]; ok {
		return v
	}
	return NegInf
}

// #endregion unk

// #region heuristic
// InitializeHeuristic computes the shortest remaining distance from
// every node to completion, once per load.
func (p *LatticePredictor) InitializeHeuristic(seq int) {
	if p.cur == nil {
		return
	}
	p.distances = fst.ShortestToFinal(p.cur, p.cfg.WeightKey)
}

// EstimateFutureCost returns the shortest remaining distance past the
// arc matching the hypothesis's last symbol, 0 when unknown.
func (p *LatticePredictor) EstimateFutureCost(h Hypothesis) float64 {
	if p.cur == nil || p.node == fst.NoState || p.distances == nil {
		return 0
	}
	last, ok := h.Last()
	if !ok {
		return 0
	}
	for _, arc := range p.cur.Arcs(p.node) {
		if arc.OLabel == last {
			return p.distances[arc.To]
		}
	}
	return 0
}

// #endregion heuristic
