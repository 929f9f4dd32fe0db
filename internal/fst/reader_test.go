package fst

import (
	"path/filepath"
	"strings"
	"testing"
)

// #region helpers
func parse(t *testing.T, text string) *Automaton {
	t.Helper()
	a, err := Read(strings.NewReader(text))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return a
}

// #endregion helpers

func TestReadArcAndFinalRecords(t *testing.T) {
	a := parse(t, `
# lattice for sequence 1
0 1 1 1 0
1 2 5 5 2.0
2 0.5
`)
	if a.Start != 0 {
		t.Fatalf("expected start 0, got %d", a.Start)
	}
	if a.NumStates() != 3 {
		t.Fatalf("expected 3 states, got %d", a.NumStates())
	}
	arcs := a.Arcs(1)
	if len(arcs) != 1 || arcs[0].To != 2 || arcs[0].OLabel != 5 {
		t.Fatalf("unexpected arcs from state 1: %+v", arcs)
	}
	if arcs[0].W.At(0) != 2.0 {
		t.Fatalf("expected weight 2.0, got %f", arcs[0].W.At(0))
	}
	cost, ok := a.Final(2)
	if !ok || cost != 0.5 {
		t.Fatalf("expected final 2 with cost 0.5, got %f ok=%v", cost, ok)
	}
}

func TestReadStartIsFirstSeenSource(t *testing.T) {
	a := parse(t, `
3 1 7 7 1.0
0 3 5 5 1.0
1
`)
	if a.Start != 3 {
		t.Fatalf("expected start 3, got %d", a.Start)
	}
}

func TestReadFinalWithoutWeight(t *testing.T) {
	a := parse(t, `
0 1 5 5 1.0
1
`)
	cost, ok := a.Final(1)
	if !ok || cost != 0 {
		t.Fatalf("expected final 1 with cost 0, got %f ok=%v", cost, ok)
	}
}

func TestReadWeightMap(t *testing.T) {
	a := parse(t, `
0 1 5 5 0 1.5 2 2.5
1
`)
	w := a.Arcs(0)[0].W
	if got := w.At(2); got != 2.5 {
		t.Fatalf("component 2: expected 2.5, got %f", got)
	}
	// Keys without their own component fall back to the reserved key 0.
	if got := w.At(9); got != 1.5 {
		t.Fatalf("component 9 fallback: expected 1.5, got %f", got)
	}
	if got := w.At(0); got != 1.5 {
		t.Fatalf("component 0: expected 1.5, got %f", got)
	}
}

func TestReadWeightMapMissingReservedKey(t *testing.T) {
	_, err := Read(strings.NewReader("0 1 5 5 2 2.5\n1\n"))
	if err == nil {
		t.Fatal("expected error for weight map without component 0")
	}
}

func TestReadMalformedRecord(t *testing.T) {
	_, err := Read(strings.NewReader("0 1 5\n"))
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expected line-numbered error, got %v", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "7.fst")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSequencePath(t *testing.T) {
	if got := SequencePath("/data/lattices", 7); got != filepath.Join("/data/lattices", "7.fst") {
		t.Fatalf("unexpected path %q", got)
	}
	if got := SequencePath("/data/lat.%d.fst", 7); got != "/data/lat.7.fst" {
		t.Fatalf("unexpected pattern path %q", got)
	}
}
