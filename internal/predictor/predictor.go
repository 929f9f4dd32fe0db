// Package predictor implements the automaton-backed scoring predictors
// driven by an external sequence decoder: a deterministic lattice
// predictor, a nondeterministic lattice predictor, and a hierarchical
// recursive-transition-network predictor. One predictor instance serves
// one input sequence's session at a time and is reset by the next
// Initialize.
package predictor

import "math"

// #region symbols
// NegInf scores a symbol as impossible.
var NegInf = math.Inf(-1)

// Vocab carries the reserved marker ids. Id 0 is the epsilon marker and
// never a vocabulary id; begin and end markers are ordinary explicit
// labels on arcs.
type Vocab struct {
	BOS int // begin-of-sequence marker
	EOS int // end-of-sequence marker
	UNK int // unknown-word id
}

// DefaultVocab returns the conventional marker ids.
func DefaultVocab() Vocab {
	return Vocab{BOS: 1, EOS: 2, UNK: 3}
}

// #endregion symbols

// #region hypothesis
// Hypothesis is the part of a partial decoder hypothesis the predictors
// consult: the consumed symbols. Only the last symbol is used by the
// future-cost estimators.
type Hypothesis struct {
	Symbols []int
}

// Last returns the most recently consumed symbol, or NoSymbol if the
// hypothesis is empty.
func (h Hypothesis) Last() (int, bool) {
	if len(h.Symbols) == 0 {
		return 0, false
	}
	return h.Symbols[len(h.Symbols)-1], true
}

// #endregion hypothesis

// #region state
// State is an opaque predictor snapshot: a single node id, a scored
// frontier, or a consumed history depending on the variant. GetState
// deep-copies on capture and SetState deep-copies on restore, so a
// snapshot held by the search shares no mutable substructure with the
// live predictor or with other snapshots.
type State interface{}

// WeightedState is one member of a nondeterministic frontier: the
// accumulated log score and the node id.
type WeightedState struct {
	Score float64
	Node  int
}

// History is the RTN snapshot: every symbol consumed since Initialize.
type History []int

// #endregion state

// #region contract
// Predictor is the uniform incremental contract the external decoder
// drives. No operation is re-entrant; the decoder alternates
// PredictNext and Consume per its own policy and branches hypotheses
// through GetState/SetState.
type Predictor interface {
	// Initialize resets traversal state and loads the automaton for the
	// 0-based sequence index. A missing or empty automaton degrades the
	// predictor to an invalid state with a logged warning; it never
	// fails the session.
	Initialize(seq int)

	// PredictNext returns the score of every symbol reachable by one
	// step, or an empty map if invalid or exhausted.
	PredictNext() Posterior

	// Consume advances the predictor by one symbol and returns the
	// traversed weight (0 if none). An unmatched symbol with no
	// fallback leaves the predictor permanently invalid for the rest
	// of the sequence.
	Consume(symbol int) float64

	// GetState captures a snapshot; SetState restores one.
	GetState() State
	SetState(State)

	// IsEqual compares two snapshots structurally for hypothesis
	// deduplication. Order-independent and consistent with GetState's
	// canonical form.
	IsEqual(a, b State) bool

	// UnkScore returns the score this predictor assigns to symbols
	// outside the returned distribution.
	UnkScore(post Posterior) float64

	// InitializeHeuristic precomputes the future-cost table for the
	// current sequence; EstimateFutureCost looks up an admissible
	// remaining-cost estimate for a partial hypothesis, defaulting
	// to 0 when unavailable.
	InitializeHeuristic(seq int)
	EstimateFutureCost(h Hypothesis) float64
}

// #endregion contract

// #region config
// Config is the shared predictor configuration surface.
type Config struct {
	// Path is the automaton base path. A literal %d is substituted with
	// the 1-based sequence index, otherwise files are <Path>/<n>.fst.
	Path string

	// UseWeights false scores every reachable symbol 0.
	UseWeights bool

	// Normalize renormalizes scores to sum to 1 in probability space
	// over exactly the reachable symbols.
	Normalize bool

	// SkipBosWeight drops the begin-marker arc's weight. When false the
	// deterministic predictor folds it onto the end-marker score and
	// the nondeterministic predictor keeps it in the frontier baseline.
	SkipBosWeight bool

	// ToLog flips the sign of file weights from additive cost to
	// log-probability before use.
	ToLog bool

	// WeightKey selects this predictor's component in shared sparse
	// arc weights. Key 0 is the reserved default component.
	WeightKey int

	Vocab Vocab
}

// DefaultConfig returns the conventional toggles for a base path.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		UseWeights:    true,
		SkipBosWeight: true,
		ToLog:         true,
		Vocab:         DefaultVocab(),
	}
}

// The three automaton variants behind the one contract.
var (
	_ Predictor = (*LatticePredictor)(nil)
	_ Predictor = (*NDLatticePredictor)(nil)
	_ Predictor = (*RTNPredictor)(nil)
)

// weightFactor is the sign applied to file weights.
func (c Config) weightFactor() float64 {
	if c.ToLog {
		return -1.0
	}
	return 1.0
}

// better reports whether a beats b in this config's score domain:
// larger log-probabilities, or smaller raw costs when ToLog is off.
func (c Config) better(a, b float64) bool {
	if c.ToLog {
		return a > b
	}
	return a < b
}

// #endregion config
