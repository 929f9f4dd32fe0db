package predictor

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/logging"
)

// #region helpers
// writeFST places an automaton file for the given 1-based sequence
// index under dir.
func writeFST(t *testing.T, dir string, n int, text string) {
	t.Helper()
	path := filepath.Join(dir, strconv.Itoa(n)+".fst")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(text)+"\n"), 0o644); err != nil {
		t.Fatalf("write fst: %v", err)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// probSum sums a posterior in probability space.
func probSum(post Posterior) float64 {
	sum := 0.0
	for _, score := range post {
		sum += math.Exp(score)
	}
	return sum
}

// simpleLattice is the deterministic two-arc example: begin marker with
// weight 0, then symbol 5 with cost 2.0 into a final state.
const simpleLattice = `
0 1 1 1 0
1 2 5 5 2.0
2
`

// #endregion helpers

func TestPredictAtStartMatchesArcWeight(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, simpleLattice)

	p := NewLatticePredictor(DefaultConfig(dir), logging.Discard())
	p.Initialize(0)

	post := p.PredictNext()
	if len(post) != 1 || !approx(post[5], -2.0) {
		t.Fatalf("expected {5: -2.0}, got %v", post)
	}
}

func TestToLogOffKeepsCostSign(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, simpleLattice)

	cfg := DefaultConfig(dir)
	cfg.ToLog = false
	p := NewLatticePredictor(cfg, logging.Discard())
	p.Initialize(0)

	if post := p.PredictNext(); !approx(post[5], 2.0) {
		t.Fatalf("expected raw cost 2.0, got %v", post)
	}
}

func TestBosWeightFoldedOntoEos(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, `
0 1 1 1 0.5
1 2 2 2 1.0
2
`)

	cfg := DefaultConfig(dir)
	cfg.SkipBosWeight = false
	p := NewLatticePredictor(cfg, logging.Discard())
	p.Initialize(0)

	// End-marker score carries the begin arc's weight: -1.0 + -0.5.
	if post := p.PredictNext(); !approx(post[2], -1.5) {
		t.Fatalf("expected folded EOS score -1.5, got %v", post)
	}
}

func TestConsumeReturnsTraversedWeight(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, simpleLattice)

	p := NewLatticePredictor(DefaultConfig(dir), logging.Discard())
	p.Initialize(0)

	if w := p.Consume(5); !approx(w, -2.0) {
		t.Fatalf("expected traversed weight -2.0, got %f", w)
	}
}

func TestConsumeFallsBackToUnknownArc(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, `
0 1 1 1 0
1 2 5 5 2.0
1 3 3 3 1.0
3 4 2 2 0
2
4
`)

	p := NewLatticePredictor(DefaultConfig(dir), logging.Discard())
	p.Initialize(0)

	// 9 matches nothing; the unknown arc (id 3) is taken with weight 0.
	if w := p.Consume(9); w != 0 {
		t.Fatalf("expected fallback weight 0, got %f", w)
	}
	post := p.PredictNext()
	if len(post) != 1 || !approx(post[2], 0) {
		t.Fatalf("expected to continue past the unknown arc, got %v", post)
	}
}

func TestConsumeWithoutMatchInvalidatesPermanently(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, simpleLattice)

	p := NewLatticePredictor(DefaultConfig(dir), logging.Discard())
	p.Initialize(0)

	if w := p.Consume(9); w != 0 {
		t.Fatalf("expected weight 0 for unmatched symbol, got %f", w)
	}
	if post := p.PredictNext(); len(post) != 0 {
		t.Fatalf("expected empty posterior after invalidation, got %v", post)
	}
	if w := p.Consume(5); w != 0 {
		t.Fatalf("invalid predictor must keep returning 0, got %f", w)
	}
}

func TestMissingAutomatonDegradesWithWarning(t *testing.T) {
	var buf bytes.Buffer
	p := NewLatticePredictor(DefaultConfig(t.TempDir()), logging.New(&buf))
	p.Initialize(6)

	if post := p.PredictNext(); len(post) != 0 {
		t.Fatalf("expected empty posterior for missing automaton, got %v", post)
	}
	if !strings.Contains(buf.String(), "[warn]") || !strings.Contains(buf.String(), "sequence 7") {
		t.Fatalf("expected warning about sequence 7, got %q", buf.String())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, `
0 1 1 1 0
1 2 5 5 2.0
2 3 6 6 1.0
3
`)

	p := NewLatticePredictor(DefaultConfig(dir), logging.Discard())
	p.Initialize(0)

	want := p.PredictNext()
	snap := p.GetState()
	p.Consume(5)

	p.SetState(snap)
	got := p.PredictNext()
	if len(got) != len(want) || !approx(got[5], want[5]) {
		t.Fatalf("restored posterior %v differs from original %v", got, want)
	}
	if !p.IsEqual(snap, p.GetState()) {
		t.Fatal("restored snapshot must compare equal to a fresh capture")
	}
}

func TestWeightsOffScoresZero(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, `
0 1 1 1 0
1 2 5 5 2.0
1 3 6 6 4.0
2
3
`)

	cfg := DefaultConfig(dir)
	cfg.UseWeights = false
	p := NewLatticePredictor(cfg, logging.Discard())
	p.Initialize(0)

	post := p.PredictNext()
	if len(post) != 2 {
		t.Fatalf("expected 2 reachable symbols, got %v", post)
	}
	for sym, score := range post {
		if score != 0 {
			t.Fatalf("expected score 0 for %d, got %f", sym, score)
		}
	}
}

func TestNormalizeSumsToOne(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, `
0 1 1 1 0
1 2 5 5 2.0
1 3 6 6 4.0
2
3
`)

	cfg := DefaultConfig(dir)
	cfg.Normalize = true
	p := NewLatticePredictor(cfg, logging.Discard())
	p.Initialize(0)

	post := p.PredictNext()
	if len(post) == 0 {
		t.Fatal("expected non-empty posterior")
	}
	if sum := probSum(post); math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("expected probability sum 1.0, got %f", sum)
	}
}

func TestUnkScoreLooksUpDistribution(t *testing.T) {
	p := NewLatticePredictor(DefaultConfig(t.TempDir()), logging.Discard())

	if got := p.UnkScore(Posterior{3: -1.5}); !approx(got, -1.5) {
		t.Fatalf("expected unknown score -1.5, got %f", got)
	}
	if got := p.UnkScore(Posterior{5: -1.5}); !math.IsInf(got, -1) {
		t.Fatalf("expected -Inf without an unknown entry, got %f", got)
	}
}

func TestFutureCostFromShortestDistance(t *testing.T) {
	dir := t.TempDir()
	writeFST(t, dir, 1, `
0 1 1 1 0
1 2 5 5 2.0
2 3 6 6 1.5
3 0.5
`)

	p := NewLatticePredictor(DefaultConfig(dir), logging.Discard())
	p.Initialize(0)
	p.InitializeHeuristic(0)

	// From state 1, the arc labeled 5 leads to state 2: 1.5 + 0.5 remain.
	got := p.EstimateFutureCost(Hypothesis{Symbols: []int{1, 5}})
	if !approx(got, 2.0) {
		t.Fatalf("expected remaining cost 2.0, got %f", got)
	}
	// No matching arc defaults to the admissible 0.
	if got := p.EstimateFutureCost(Hypothesis{Symbols: []int{9}}); got != 0 {
		t.Fatalf("expected default 0, got %f", got)
	}
}
