package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/logging"
	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/predictor"
)

// replay drives a predictor over recorded symbol sequences and prints
// the per-step distributions and traversed weights. One sequence per
// line, space-separated symbol ids; line N replays against sequence N's
// automaton. With --snapshot-check every step is additionally re-run
// from a snapshot and the distributions are compared, exercising the
// save/restore contract the external search depends on.

// #region main
func main() {
	kind := flag.String("type", "fst", "predictor variant: fst | nfst | rtn")
	path := flag.String("path", "", "automaton base path")
	seqsPath := flag.String("seqs", "", "file of symbol sequences, one per line")
	topK := flag.Int("top", 5, "print the K best next symbols per step")
	normalize := flag.Bool("normalize", false, "renormalize distributions")
	useWeights := flag.Bool("weights", true, "score with arc weights")
	snapshotCheck := flag.Bool("snapshot-check", false, "verify snapshot round-trips at every step")
	flag.Parse()

	if *path == "" || *seqsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --type fst|nfst|rtn --path base --seqs file [--top K] [--normalize] [--weights=false] [--snapshot-check]")
		os.Exit(2)
	}

	sequences, err := readSequences(*seqsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	p, err := build(*kind, *path, *useWeights, *normalize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	failures := 0
	for i, seq := range sequences {
		failures += replaySequence(p, i, seq, *topK, *snapshotCheck)
	}
	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d snapshot check(s) failed\n", failures)
		os.Exit(1)
	}
}

// #endregion main

// #region build
func build(kind, path string, useWeights, normalize bool) (predictor.Predictor, error) {
	lg := logging.New(os.Stderr)
	cfg := predictor.DefaultConfig(path)
	cfg.UseWeights = useWeights
	cfg.Normalize = normalize
	switch kind {
	case "fst":
		return predictor.NewLatticePredictor(cfg, lg), nil
	case "nfst":
		return predictor.NewNDLatticePredictor(cfg, lg), nil
	case "rtn":
		rtnCfg := predictor.DefaultRTNConfig(path)
		rtnCfg.Config = cfg
		return predictor.NewRTNPredictor(rtnCfg, lg), nil
	default:
		return nil, fmt.Errorf("unknown predictor type %q", kind)
	}
}

func readSequences(path string) ([][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sequences: %w", err)
	}
	defer f.Close()

	var sequences [][]int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var seq []int
		for _, field := range strings.Fields(line) {
			sym, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("symbol %q: %w", field, err)
			}
			seq = append(seq, sym)
		}
		sequences = append(sequences, seq)
	}
	return sequences, scanner.Err()
}

// #endregion build

// #region replay
func replaySequence(p predictor.Predictor, idx int, symbols []int, topK int, check bool) int {
	fmt.Printf("sequence %d: %v\n", idx+1, symbols)
	p.Initialize(idx)

	failures := 0
	for step, sym := range symbols {
		post := p.PredictNext()
		if check {
			snap := p.GetState()
			p.SetState(snap)
			if !samePosterior(post, p.PredictNext()) {
				fmt.Printf("  step %d: snapshot round-trip diverged\n", step)
				failures++
			}
		}
		printTop(post, topK)
		w := p.Consume(sym)
		fmt.Printf("  consume %d  w=%.4f\n", sym, w)
	}
	final := p.PredictNext()
	fmt.Printf("  reachable after sequence: %d symbols\n", len(final))
	return failures
}

func printTop(post predictor.Posterior, k int) {
	type entry struct {
		sym   int
		score float64
	}
	entries := make([]entry, 0, len(post))
	for sym, score := range post {
		entries = append(entries, entry{sym, score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].sym < entries[j].sym
	})
	if len(entries) > k {
		entries = entries[:k]
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%d:%.4f", e.sym, e.score)
	}
	fmt.Printf("  next: {%s} (%d total)\n", strings.Join(parts, " "), len(post))
}

func samePosterior(a, b predictor.Posterior) bool {
	if len(a) != len(b) {
		return false
	}
	for sym, score := range a {
		other, ok := b[sym]
		if !ok || math.Abs(score-other) > 1e-9 {
			return false
		}
	}
	return true
}

// #endregion replay
