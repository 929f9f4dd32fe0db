package api

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/logging"
	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/predictor"
)

// #region server
// Server exposes a registry of named predictors to an external decoder
// process. Predictors are single-threaded by contract, so every RPC is
// serialized behind one mutex.
type Server struct {
	mu    sync.Mutex
	preds map[string]predictor.Predictor
	log   *logging.Log
}

// NewServer creates an empty predictor registry.
func NewServer(log *logging.Log) *Server {
	return &Server{
		preds: make(map[string]predictor.Predictor),
		log:   log.Named("api"),
	}
}

// Register adds a predictor under a name the decoder addresses it by.
func (s *Server) Register(name string, p predictor.Predictor) {
	s.preds[name] = p
}

// Names returns the registered predictor names, sorted.
func (s *Server) Names() []string {
	names := make([]string, 0, len(s.preds))
	for name := range s.preds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) lookup(name string) (predictor.Predictor, error) {
	p, ok := s.preds[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no predictor registered as %q", name)
	}
	return p, nil
}

// #endregion server

// #region rpcs
// Initialize resets a predictor for a new sequence and rotates the
// trace session.
func (s *Server) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(req.Predictor)
	if err != nil {
		return nil, err
	}
	s.log.NewSession()
	p.Initialize(req.Sequence)
	if req.Heuristic {
		p.InitializeHeuristic(req.Sequence)
	}
	return &InitializeResponse{Session: s.log.SessionID()}, nil
}

// PredictNext returns the next-symbol distribution.
func (s *Server) PredictNext(ctx context.Context, req *PredictNextRequest) (*PredictNextResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(req.Predictor)
	if err != nil {
		return nil, err
	}
	return &PredictNextResponse{Scores: p.PredictNext()}, nil
}

// Consume advances a predictor by one symbol.
func (s *Server) Consume(ctx context.Context, req *ConsumeRequest) (*ConsumeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(req.Predictor)
	if err != nil {
		return nil, err
	}
	return &ConsumeResponse{Weight: p.Consume(req.Symbol)}, nil
}

// GetState captures a snapshot in wire form.
func (s *Server) GetState(ctx context.Context, req *GetStateRequest) (*GetStateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(req.Predictor)
	if err != nil {
		return nil, err
	}
	return &GetStateResponse{State: snapshotFromState(p.GetState())}, nil
}

// SetState restores a snapshot.
func (s *Server) SetState(ctx context.Context, req *SetStateRequest) (*SetStateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(req.Predictor)
	if err != nil {
		return nil, err
	}
	p.SetState(req.State.toState())
	return &SetStateResponse{}, nil
}

// IsEqual compares two snapshots for hypothesis deduplication.
func (s *Server) IsEqual(ctx context.Context, req *IsEqualRequest) (*IsEqualResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(req.Predictor)
	if err != nil {
		return nil, err
	}
	return &IsEqualResponse{Equal: p.IsEqual(req.A.toState(), req.B.toState())}, nil
}

// UnkScore scores symbols outside the given distribution.
func (s *Server) UnkScore(ctx context.Context, req *UnkScoreRequest) (*UnkScoreResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(req.Predictor)
	if err != nil {
		return nil, err
	}
	score, finite := finiteScore(p.UnkScore(req.Scores))
	return &UnkScoreResponse{Score: score, Impossible: !finite}, nil
}

// EstimateFutureCost looks up the remaining-cost estimate for a partial
// hypothesis.
func (s *Server) EstimateFutureCost(ctx context.Context, req *EstimateRequest) (*EstimateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(req.Predictor)
	if err != nil {
		return nil, err
	}
	cost, finite := finiteScore(p.EstimateFutureCost(predictor.Hypothesis{Symbols: req.Symbols}))
	return &EstimateResponse{Cost: cost, Unreachable: !finite}, nil
}

// #endregion rpcs

// #region serve
// Serve listens on addr and serves the predictor service with the JSON
// codec forced. addr may be "unix:/path/to.sock" or a TCP host:port.
func (s *Server) Serve(addr string) error {
	lis, err := listen(addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	server := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	RegisterPredictorServer(server, s)
	s.log.Debugf("predictor service listening on %s", addr)
	return server.Serve(lis)
}

func listen(addr string) (net.Listener, error) {
	if strings.HasPrefix(addr, "unix:") {
		socketPath := strings.TrimPrefix(addr, "unix:")
		if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return net.Listen("unix", socketPath)
	}
	return net.Listen("tcp", addr)
}

// #endregion serve
