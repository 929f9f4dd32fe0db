package predictor

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/fst"
	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/logging"
)

// #region config
// RTNConfig extends the shared surface with the recursive-transition-
// network toggles.
type RTNConfig struct {
	Config

	// RemoveEps removes epsilon arcs from the working automaton after
	// each expansion round. A space/time trade-off; the score mapping
	// is unchanged.
	RemoveEps bool

	// Minimize additionally trims dead states after expansion.
	Minimize bool
}

// DefaultRTNConfig returns the conventional toggles for an RTN
// directory.
func DefaultRTNConfig(path string) RTNConfig {
	return RTNConfig{
		Config:    DefaultConfig(path),
		RemoveEps: true,
	}
}

// #endregion config

// #region type
// RTNPredictor scores against hierarchical automata whose arcs may
// reference other automata by nonterminal id. Sub-automata are spliced
// in lazily, only as far as the consumed history requires ("late
// expansion"). The only retained traversal state is the history itself:
// substitution renumbers nodes, so the active frontier is re-derived
// from the history on every call.
type RTNPredictor struct {
	cfg RTNConfig
	log *logging.Log

	rootPrefix string
	seq        int

	cur     *fst.Automaton
	history History
	subs    map[int]*fst.Automaton
}

// NewRTNPredictor creates an RTN predictor. The grammar start
// nonterminal is resolved from <path>/ntmap (one "name id" pair per
// line, key S); a missing or unreadable map defaults the id to 1 with a
// logged warning.
func NewRTNPredictor(cfg RTNConfig, log *logging.Log) *RTNPredictor {
	p := &RTNPredictor{
		cfg: cfg,
		log: log.Named("rtn"),
	}
	startID := p.readStartNonterminal()
	for len(startID) < 3 {
		startID = "0" + startID
	}
	p.rootPrefix = "1" + startID + "000"
	return p
}

func (p *RTNPredictor) readStartNonterminal() string {
	path := filepath.Join(p.cfg.Path, "ntmap")
	data, err := os.ReadFile(path)
	if err != nil {
		p.log.Warnf("could not read %s, assuming start nonterminal id 1: %v", path, err)
		return "1"
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "S" {
			return fields[1]
		}
	}
	p.log.Warnf("nonterminal S not found in %s, assuming id 1", path)
	return "1"
}

// #endregion type

// #region initialize
// Initialize resolves and loads the sequence's root automaton, clears
// the sub-automaton cache, and consumes the begin marker. The root is
// <path>/<n>.fst directly or, failing that, the file under <path>/<n>/
// uniquely prefixed by the derived start-nonterminal prefix; several
// candidates resolve deterministically to the lexicographically last.
func (p *RTNPredictor) Initialize(seq int) {
	p.seq = seq + 1
	p.log.SetSequence(p.seq)
	p.history = nil
	p.subs = make(map[int]*fst.Automaton)
	p.cur = nil

	file := filepath.Join(p.cfg.Path, strconv.Itoa(p.seq)+".fst")
	if _, err := os.Stat(file); err != nil {
		pattern := filepath.Join(p.cfg.Path, strconv.Itoa(p.seq), p.rootPrefix+"*.fst")
		candidates, _ := filepath.Glob(pattern)
		if len(candidates) == 0 {
			p.log.Errorf("could not find root automaton matching %s", pattern)
			p.Consume(p.cfg.Vocab.BOS)
			return
		}
		if len(candidates) > 1 {
			p.log.Warnf("ambiguous root automaton for %s, taking the largest span", pattern)
		}
		sort.Strings(candidates)
		file = candidates[len(candidates)-1]
	}
	a, err := fst.ReadFile(file)
	if err != nil {
		p.log.Errorf("error reading root automaton from %s: %v", file, err)
	} else {
		p.cur = a
		p.log.Debugf("read root automaton from %s", file)
	}
	p.Consume(p.cfg.Vocab.BOS)
}

// #endregion initialize

// #region nonterminals
// isNonterminal recognizes nonterminal labels structurally: a fixed
// width of ten decimal digits with leading digit 1, a range disjoint
// from vocabulary ids.
func isNonterminal(label int) bool {
	s := strconv.Itoa(label)
	return len(s) == 10 && s[0] == '1'
}

// subAutomaton loads a referenced sub-automaton from the session cache
// or the file system. An unreadable file is logged as an error and
// yields nil; the caller drops the referencing arc and expansion
// proceeds with the rest.
func (p *RTNPredictor) subAutomaton(id int) *fst.Automaton {
	if sub, ok := p.subs[id]; ok {
		return sub
	}
	path := filepath.Join(p.cfg.Path, strconv.Itoa(p.seq), strconv.Itoa(id)+".fst")
	sub, err := fst.ReadFile(path)
	if err != nil {
		p.log.Errorf("error reading sub-automaton from %s: %v", path, err)
		return nil
	}
	p.log.Debugf("read sub-automaton from %s", path)
	p.subs[id] = sub
	return sub
}

// #endregion nonterminals

// #region expansion
// ntRef addresses one nonterminal arc found by a scan pass.
type ntRef struct {
	state int
	idx   int
}

// expand runs the late-expansion fixed point: scan the working
// automaton from its start state along the consumed history, emit the
// terminal arcs found past it, splice in the sub-automata referenced by
// the nonterminal arcs found there, and repeat until a full pass
// substitutes nothing new. Emission is cumulative across passes; the
// caller keeps the best score per label.
func (p *RTNPredictor) expand(emit func(label int, score float64)) {
	for {
		p.cur.ArcSort()
		var pending []ntRef
		seen := make(map[ntRef]bool)
		p.scan(p.cur.Start, 0, p.history, make(map[int]bool), &pending, seen, emit)
		if len(pending) == 0 {
			break
		}
		p.log.Debugf("replacing %d nonterminal arcs for history %v", len(pending), p.history)
		p.spliceAll(pending)
	}
	if p.cfg.RemoveEps || p.cfg.Minimize {
		p.cur.RemoveEpsilon(p.cfg.WeightKey)
	}
	if p.cfg.Minimize {
		p.cur.Trim(p.cfg.WeightKey)
	}
}

// scan walks depth-first from node, following epsilon arcs freely and
// real-labeled arcs only when they match the next unconsumed history
// symbol. Paths that have consumed the whole history classify what they
// find: vocabulary arcs are emitted as candidate next scores,
// nonterminal arcs are collected for substitution. The visited map is
// keyed per distinct remaining-history suffix: a node reached again
// under the same suffix is skipped, so only the first path found under
// that suffix contributes. This can drop a higher-scoring alternative
// when paths share a node and suffix, a known precision trade-off.
func (p *RTNPredictor) scan(node int, acc float64, hist []int, visited map[int]bool, pending *[]ntRef, seen map[ntRef]bool, emit func(int, float64)) {
	if node == fst.NoState || visited[node] {
		return
	}
	visited[node] = true
	factor := p.cfg.weightFactor()
	for i, arc := range p.cur.Arcs(node) {
		w := acc + factor*arc.W.At(p.cfg.WeightKey)
		switch {
		case arc.OLabel == fst.Epsilon:
			p.scan(arc.To, w, hist, visited, pending, seen, emit)
		case len(hist) == 0:
			if isNonterminal(arc.OLabel) {
				ref := ntRef{state: node, idx: i}
				if !seen[ref] {
					seen[ref] = true
					*pending = append(*pending, ref)
				}
			} else {
				emit(arc.OLabel, w)
			}
		case arc.OLabel == hist[0]:
			p.scan(arc.To, w, hist[1:], make(map[int]bool), pending, seen, emit)
		case arc.OLabel > hist[0]:
			// Arc-sorted: nothing past here can match.
			return
		}
	}
}

// spliceAll resolves the collected nonterminal arcs: each is replaced
// by its sub-automaton under fresh state ids, bridged with an epsilon
// entry arc carrying the nonterminal arc's weight and epsilon exit arcs
// carrying the sub-automaton's final weights. Arcs whose sub-automaton
// cannot be read are dropped. Per-state deletion runs highest index
// first so earlier references stay valid.
func (p *RTNPredictor) spliceAll(pending []ntRef) {
	perState := make(map[int][]int)
	for _, ref := range pending {
		perState[ref.state] = append(perState[ref.state], ref.idx)
	}
	for state, idxs := range perState {
		sort.Sort(sort.Reverse(sort.IntSlice(idxs)))
		for _, idx := range idxs {
			arc := p.cur.Arcs(state)[idx]
			if sub := p.subAutomaton(arc.OLabel); sub != nil {
				p.cur.Splice(sub, state, arc.To, arc.W.At(p.cfg.WeightKey), p.cfg.WeightKey)
			}
			p.cur.DeleteArc(state, idx)
		}
	}
}

// #endregion expansion

// #region predict
// PredictNext expands the network as far as the history requires and
// aggregates the terminal arcs reachable past it, best score per label.
func (p *RTNPredictor) PredictNext() Posterior {
	if p.cur == nil {
		return Posterior{}
	}
	scores := make(Posterior)
	p.expand(func(label int, score float64) {
		if old, ok := scores[label]; !ok || p.cfg.better(score, old) {
			scores[label] = score
		}
	})
	return Finalize(scores, p.cfg.UseWeights, p.cfg.Normalize)
}

// #endregion predict

// #region consume
// Consume appends the symbol to the history. The traversal itself
// happens lazily at the next PredictNext.
func (p *RTNPredictor) Consume(symbol int) float64 {
	p.history = append(p.history, symbol)
	return 0
}

// #endregion consume

// #region state
// GetState returns a copy of the consumed history.
func (p *RTNPredictor) GetState() State {
	snap := make(History, len(p.history))
	copy(snap, p.history)
	return snap
}

// SetState restores a history snapshot.
func (p *RTNPredictor) SetState(s State) {
	hist, ok := s.(History)
	if !ok {
		p.log.Errorf("rtn snapshot has type %T, expected History", s)
		return
	}
	p.history = make(History, len(hist))
	copy(p.history, hist)
}

// IsEqual compares two history snapshots symbol by symbol.
func (p *RTNPredictor) IsEqual(a, b State) bool {
	ha, ok := a.(History)
	if !ok {
		return false
	}
	hb, ok := b.(History)
	if !ok {
		return false
	}
	if len(ha) != len(hb) {
		return false
	}
	for i := range ha {
		if ha[i] != hb[i] {
			return false
		}
	}
	return true
}

// #endregion state

// #region unk
// UnkScore is always negative infinity: symbols outside the network are
// impossible according to this predictor.
func (p *RTNPredictor) UnkScore(post Posterior) float64 {
	return NegInf
}

// #endregion unk

// #region heuristic
// InitializeHeuristic is a no-op: the working automaton is renumbered
// by substitution, so no stable distance table exists for this variant.
func (p *RTNPredictor) InitializeHeuristic(seq int) {}

// EstimateFutureCost always returns the admissible default 0.
func (p *RTNPredictor) EstimateFutureCost(h Hypothesis) float64 {
	return 0
}

// #endregion heuristic
