package predictor

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/logging"
)

// #region helpers
// writeRTNFile places an automaton file under an RTN directory tree,
// e.g. "1.fst" for a root or "1/1001000005.fst" for a sub-automaton.
func writeRTNFile(t *testing.T, base, rel, text string) {
	t.Helper()
	path := filepath.Join(base, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(text)+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newRTN(t *testing.T, base string) *RTNPredictor {
	t.Helper()
	return NewRTNPredictor(DefaultRTNConfig(base), logging.Discard())
}

// rtnRoot references sub-automaton 1001000005 between the begin and end
// markers.
const rtnRoot = `
0 1 1 1 0
1 2 1001000005 1001000005 0.5
2 3 2 2 0
3
`

// rtnSub accepts the single symbol 5 with cost 3.0.
const rtnSub = `
0 1 5 5 3.0
1 0.25
`

// #endregion helpers

func TestRTNStartNonterminalDefaultsWithWarning(t *testing.T) {
	var buf bytes.Buffer
	p := NewRTNPredictor(DefaultRTNConfig(t.TempDir()), logging.New(&buf))

	if p.rootPrefix != "1001000" {
		t.Fatalf("expected default root prefix 1001000, got %s", p.rootPrefix)
	}
	if !strings.Contains(buf.String(), "assuming") {
		t.Fatalf("expected default warning, got %q", buf.String())
	}
}

func TestRTNStartNonterminalFromNtmap(t *testing.T) {
	base := t.TempDir()
	writeRTNFile(t, base, "ntmap", "X 3\nS 17")

	p := newRTN(t, base)
	if p.rootPrefix != "1017000" {
		t.Fatalf("expected root prefix 1017000, got %s", p.rootPrefix)
	}
}

func TestRTNExpandsReferencedSubAutomaton(t *testing.T) {
	base := t.TempDir()
	writeRTNFile(t, base, "1.fst", rtnRoot)
	writeRTNFile(t, base, "1/1001000005.fst", rtnSub)

	p := newRTN(t, base)
	p.Initialize(0)

	// The nonterminal arc (0.5), sub content (3.0) and the entry path
	// accumulate: score -(0.5 + 3.0).
	post := p.PredictNext()
	if len(post) != 1 || !approx(post[5], -3.5) {
		t.Fatalf("expected {5: -3.5}, got %v", post)
	}

	// Past the sub-automaton the exit epsilon carries its final cost
	// onto the path to the end marker.
	p.Consume(5)
	post = p.PredictNext()
	if len(post) != 1 || !approx(post[2], -3.75) {
		t.Fatalf("expected {2: -3.75}, got %v", post)
	}
}

func TestRTNExpansionReachesFixedPoint(t *testing.T) {
	base := t.TempDir()
	writeRTNFile(t, base, "1.fst", rtnRoot)
	writeRTNFile(t, base, "1/1001000005.fst", rtnSub)

	p := newRTN(t, base)
	p.Initialize(0)

	first := p.PredictNext()
	second := p.PredictNext()
	if len(first) != len(second) || !approx(first[5], second[5]) {
		t.Fatalf("expansion not stable: %v then %v", first, second)
	}
}

func TestRTNRecursiveExpansion(t *testing.T) {
	base := t.TempDir()
	// The root references sub A; A references sub B; B carries the
	// terminal symbol.
	writeRTNFile(t, base, "1.fst", `
0 1 1 1 0
1 2 1001000005 1001000005 0
2 3 2 2 0
3
`)
	writeRTNFile(t, base, "1/1001000005.fst", `
0 1 1001000006 1001000006 1.0
1
`)
	writeRTNFile(t, base, "1/1001000006.fst", `
0 1 7 7 2.0
1
`)

	p := newRTN(t, base)
	p.Initialize(0)

	post := p.PredictNext()
	if len(post) != 1 || !approx(post[7], -3.0) {
		t.Fatalf("expected {7: -3.0} through two substitutions, got %v", post)
	}
}

func TestRTNRootResolvedByPrefixGlob(t *testing.T) {
	base := t.TempDir()
	var buf bytes.Buffer
	// No 1.fst; two candidates under 1/ share the root prefix and the
	// lexicographically last must win.
	writeRTNFile(t, base, "1/1001000003.fst", `
0 1 1 1 0
1 2 8 8 1.0
2
`)
	writeRTNFile(t, base, "1/1001000007.fst", `
0 1 1 1 0
1 2 9 9 1.0
2
`)

	p := NewRTNPredictor(DefaultRTNConfig(base), logging.New(&buf))
	p.Initialize(0)

	post := p.PredictNext()
	if len(post) != 1 || !approx(post[9], -1.0) {
		t.Fatalf("expected the last candidate's symbol {9: -1.0}, got %v", post)
	}
	if !strings.Contains(buf.String(), "ambiguous") {
		t.Fatalf("expected ambiguity warning, got %q", buf.String())
	}
}

func TestRTNMissingRootDegradesWithError(t *testing.T) {
	var buf bytes.Buffer
	p := NewRTNPredictor(DefaultRTNConfig(t.TempDir()), logging.New(&buf))
	p.Initialize(0)

	if post := p.PredictNext(); len(post) != 0 {
		t.Fatalf("expected empty posterior, got %v", post)
	}
	if !strings.Contains(buf.String(), "[error]") {
		t.Fatalf("expected error log, got %q", buf.String())
	}
}

func TestRTNUnreadableSubContributesNothing(t *testing.T) {
	base := t.TempDir()
	var buf bytes.Buffer
	// Two nonterminal arcs; only one sub-automaton exists on disk.
	writeRTNFile(t, base, "1.fst", `
0 1 1 1 0
1 2 1001000005 1001000005 0
1 3 1001000006 1001000006 0
2 4 2 2 0
3 4 2 2 0
4
`)
	writeRTNFile(t, base, "1/1001000005.fst", rtnSub)

	p := NewRTNPredictor(DefaultRTNConfig(base), logging.New(&buf))
	p.Initialize(0)

	post := p.PredictNext()
	if len(post) != 1 || !approx(post[5], -3.0) {
		t.Fatalf("expected only the readable sub's symbol, got %v", post)
	}
	if !strings.Contains(buf.String(), "[error]") {
		t.Fatalf("expected error log for the unreadable sub, got %q", buf.String())
	}
}

func TestRTNHistorySnapshotRoundTrip(t *testing.T) {
	base := t.TempDir()
	writeRTNFile(t, base, "1.fst", rtnRoot)
	writeRTNFile(t, base, "1/1001000005.fst", rtnSub)

	p := newRTN(t, base)
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
	if p.IsEqual(snap, History{1, 5}) {
		t.Fatal("histories of different content must differ")
	}
}

func TestRTNSubAutomatonCachedPerSession(t *testing.T) {
	base := t.TempDir()
	writeRTNFile(t, base, "1.fst", rtnRoot)
	writeRTNFile(t, base, "1/1001000005.fst", rtnSub)

	p := newRTN(t, base)
	p.Initialize(0)
	p.PredictNext()

	if _, ok := p.subs[1001000005]; !ok {
		t.Fatal("expected sub-automaton in the session cache")
	}
	p.Initialize(0)
	if len(p.subs) != 0 {
		t.Fatal("expected the cache to clear at initialize")
	}
}

func TestRTNUnkImpossibleAndNoHeuristic(t *testing.T) {
	p := newRTN(t, t.TempDir())
	if got := p.UnkScore(Posterior{3: -1}); !math.IsInf(got, -1) {
		t.Fatalf("expected -Inf, got %f", got)
	}
	p.InitializeHeuristic(0)
	if got := p.EstimateFutureCost(Hypothesis{Symbols: []int{5}}); got != 0 {
		t.Fatalf("expected 0 future cost, got %f", got)
	}
}
