package api

import (
	"math"

	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/fst"
	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/predictor"
)

// Wire types for the predictor service. Payloads travel as JSON over
// gRPC, so the structures here are plain tagged structs rather than
// generated stubs.

// #region snapshot
// Snapshot is the wire form of a predictor state: a single node id, a
// scored frontier, or a consumed history depending on the variant.
type Snapshot struct {
	Kind     string         `json:"kind"` // "node" | "frontier" | "history"
	Node     int            `json:"node,omitempty"`
	Frontier []FrontierNode `json:"frontier,omitempty"`
	History  []int          `json:"history,omitempty"`
}

// FrontierNode is one scored member of a nondeterministic frontier.
type FrontierNode struct {
	Score float64 `json:"score"`
	Node  int     `json:"node"`
}

// snapshotFromState converts a live predictor state to wire form.
func snapshotFromState(s predictor.State) Snapshot {
	switch v := s.(type) {
	case int:
		return Snapshot{Kind: "node", Node: v}
	case []predictor.WeightedState:
		frontier := make([]FrontierNode, len(v))
		for i, ws := range v {
			frontier[i] = FrontierNode{Score: ws.Score, Node: ws.Node}
		}
		return Snapshot{Kind: "frontier", Frontier: frontier}
	case predictor.History:
		hist := make([]int, len(v))
		copy(hist, v)
		return Snapshot{Kind: "history", History: hist}
	default:
		return Snapshot{Kind: "node", Node: fst.NoState}
	}
}

// toState converts a wire snapshot back to a predictor state.
func (s Snapshot) toState() predictor.State {
	switch s.Kind {
	case "frontier":
		frontier := make([]predictor.WeightedState, len(s.Frontier))
		for i, fn := range s.Frontier {
			frontier[i] = predictor.WeightedState{Score: fn.Score, Node: fn.Node}
		}
		return frontier
	case "history":
		hist := make(predictor.History, len(s.History))
		copy(hist, s.History)
		return hist
	default:
		return s.Node
	}
}

// #endregion snapshot

// #region requests
// InitializeRequest selects a registered predictor and a 0-based
// sequence index. Heuristic additionally precomputes future costs.
type InitializeRequest struct {
	Predictor string `json:"predictor"`
	Sequence  int    `json:"sequence"`
	Heuristic bool   `json:"heuristic,omitempty"`
}

type InitializeResponse struct {
	Session string `json:"session"`
}

type PredictNextRequest struct {
	Predictor string `json:"predictor"`
}

type PredictNextResponse struct {
	Scores map[int]float64 `json:"scores"`
}

type ConsumeRequest struct {
	Predictor string `json:"predictor"`
	Symbol    int    `json:"symbol"`
}

type ConsumeResponse struct {
	Weight float64 `json:"weight"`
}

type GetStateRequest struct {
	Predictor string `json:"predictor"`
}

type GetStateResponse struct {
	State Snapshot `json:"state"`
}

type SetStateRequest struct {
	Predictor string   `json:"predictor"`
	State     Snapshot `json:"state"`
}

type SetStateResponse struct{}

type IsEqualRequest struct {
	Predictor string   `json:"predictor"`
	A         Snapshot `json:"a"`
	B         Snapshot `json:"b"`
}

type IsEqualResponse struct {
	Equal bool `json:"equal"`
}

// UnkScoreRequest carries the distribution the caller already holds,
// mirroring the in-process contract.
type UnkScoreRequest struct {
	Predictor string          `json:"predictor"`
	Scores    map[int]float64 `json:"scores"`
}

// UnkScoreResponse reports the unknown-symbol score. Impossible stands
// in for negative infinity, which JSON cannot carry.
type UnkScoreResponse struct {
	Score      float64 `json:"score"`
	Impossible bool    `json:"impossible,omitempty"`
}

type EstimateRequest struct {
	Predictor string `json:"predictor"`
	Symbols   []int  `json:"symbols"`
}

// EstimateResponse reports the remaining-cost estimate. Unreachable
// stands in for an infinite distance.
type EstimateResponse struct {
	Cost        float64 `json:"cost"`
	Unreachable bool    `json:"unreachable,omitempty"`
}

// #endregion requests

// #region helpers
func finiteScore(v float64) (float64, bool) {
	if math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// #endregion helpers
