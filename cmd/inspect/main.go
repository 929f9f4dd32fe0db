package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/fst"
)

// inspect dumps a serialized automaton: states, arcs, final weights and
// optionally the shortest remaining distance per state.

// #region main
func main() {
	path := flag.String("fst", "", "path to an automaton file")
	key := flag.Int("key", 0, "weight component key for sparse weights")
	distances := flag.Bool("distances", false, "print shortest distance to completion per state")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --fst path/to/automaton.fst [--key N] [--distances] [--json]")
		os.Exit(2)
	}

	a, err := fst.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(a, *key, *distances, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region dump
type arcRow struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Label  int     `json:"label"`
	Weight float64 `json:"weight"`
}

type dump struct {
	Start     int             `json:"start"`
	NumStates int             `json:"num_states"`
	NumArcs   int             `json:"num_arcs"`
	Finals    map[int]float64 `json:"finals"`
	Arcs      []arcRow        `json:"arcs"`
	Distances map[int]float64 `json:"distances,omitempty"`
}

func run(a *fst.Automaton, key int, distances, jsonOut bool) error {
	d := dump{
		Start:     a.Start,
		NumStates: a.NumStates(),
		Finals:    a.Finals,
	}
	for s := 0; s < a.NumStates(); s++ {
		for _, arc := range a.Arcs(s) {
			d.Arcs = append(d.Arcs, arcRow{From: arc.From, To: arc.To, Label: arc.OLabel, Weight: arc.W.At(key)})
		}
	}
	d.NumArcs = len(d.Arcs)

	if distances {
		dist := fst.ShortestToFinal(a, key)
		d.Distances = make(map[int]float64, len(dist))
		for s, v := range dist {
			if !math.IsInf(v, 1) {
				d.Distances[s] = v
			}
		}
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	fmt.Printf("start=%d states=%d arcs=%d finals=%d\n", d.Start, d.NumStates, d.NumArcs, len(d.Finals))
	for _, arc := range d.Arcs {
		fmt.Printf("  %d -> %d  label=%d  w=%.4f\n", arc.From, arc.To, arc.Label, arc.Weight)
	}
	finals := make([]int, 0, len(d.Finals))
	for s := range d.Finals {
		finals = append(finals, s)
	}
	sort.Ints(finals)
	for _, s := range finals {
		fmt.Printf("  final %d  w=%.4f\n", s, d.Finals[s])
	}
	if d.Distances != nil {
		states := make([]int, 0, len(d.Distances))
		for s := range d.Distances {
			states = append(states, s)
		}
		sort.Ints(states)
		for _, s := range states {
			fmt.Printf("  dist %d -> final  %.4f\n", s, d.Distances[s])
		}
	}
	return nil
}

// #endregion dump
