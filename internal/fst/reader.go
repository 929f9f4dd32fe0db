package fst

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// #region paths
// SequencePath resolves the automaton file for a 1-based sequence
// index. A literal %d in base is substituted; otherwise the file is
// <base>/<n>.fst.
func SequencePath(base string, n int) string {
	if strings.Contains(base, "%d") {
		return strings.ReplaceAll(base, "%d", strconv.Itoa(n))
	}
	return filepath.Join(base, strconv.Itoa(n)+".fst")
}

// Load reads the automaton for a 1-based sequence index under base.
func Load(base string, n int) (*Automaton, error) {
	return ReadFile(SequencePath(base, n))
}

// #endregion paths

// #region reader
// ReadFile parses a serialized automaton from disk.
func ReadFile(path string) (*Automaton, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open automaton: %w", err)
	}
	defer f.Close()
	a, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read automaton %s: %w", path, err)
	}
	return a, nil
}

// Read parses the line-oriented automaton format:
//
//	src dst ilabel olabel [weight | k0 v0 k1 v1 ...]   arc record
//	state [weight]                                     final-state record
//
// The first-seen source state is the start state. Blank lines and
// lines starting with # are skipped.
func Read(r io.Reader) (*Automaton, error) {
	a := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch {
		case len(fields) <= 2:
			if err := readFinal(a, fields); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case len(fields) >= 4:
			if err := readArc(a, fields); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		default:
			return nil, fmt.Errorf("line %d: malformed record %q", lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return a, nil
}

func readFinal(a *Automaton, fields []string) error {
	state, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("final state id %q: %w", fields[0], err)
	}
	cost := 0.0
	if len(fields) == 2 {
		cost, err = strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("final weight %q: %w", fields[1], err)
		}
	}
	a.SetFinal(state, cost)
	if a.Start == NoState {
		a.Start = state
	}
	return nil
}

func readArc(a *Automaton, fields []string) error {
	var ids [4]int
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return fmt.Errorf("arc field %q: %w", fields[i], err)
		}
		ids[i] = v
	}
	w, err := readWeight(fields[4:])
	if err != nil {
		return err
	}
	if a.Start == NoState {
		a.Start = ids[0]
	}
	a.AddArc(Arc{From: ids[0], To: ids[1], Label: ids[2], OLabel: ids[3], W: w})
	return nil
}

// readWeight parses the weight tail of an arc record: absent (cost 0),
// a single scalar, or a flat alternating key/value component list.
func readWeight(fields []string) (Weight, error) {
	switch {
	case len(fields) == 0:
		return Scalar(0), nil
	case len(fields) == 1:
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Weight{}, fmt.Errorf("arc weight %q: %w", fields[0], err)
		}
		return Scalar(v), nil
	case len(fields)%2 == 0:
		comps := make(map[int]float64, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			k, err := strconv.Atoi(fields[i])
			if err != nil {
				return Weight{}, fmt.Errorf("weight component key %q: %w", fields[i], err)
			}
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return Weight{}, fmt.Errorf("weight component value %q: %w", fields[i+1], err)
			}
			comps[k] = v
		}
		if _, ok := comps[0]; !ok {
			return Weight{}, fmt.Errorf("weight map missing reserved component 0")
		}
		return Weight{Components: comps}, nil
	default:
		return Weight{}, fmt.Errorf("odd weight component list %v", fields)
	}
}

// #endregion reader
