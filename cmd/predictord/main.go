package main

import (
	"log"
	"os"
	"strconv"

	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/api"
	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/logging"
	"github.com/hollenbeck-lab/lattice-decode/go-predictor/internal/predictor"
)

// predictord serves the automaton predictors to an external decoder
// process over gRPC. Each configured automaton base path registers one
// predictor; the decoder drives them by name through the uniform
// initialize / predict / consume / snapshot contract.

// #region main
func main() {
	addr := envOr("PRED_ADDR", "unix:/tmp/predictord.sock")

	lg := logging.New(os.Stderr)
	if tracePath := os.Getenv("PRED_TRACE_DB"); tracePath != "" {
		store, err := logging.OpenTrace(tracePath)
		if err != nil {
			log.Fatalf("failed to open trace db: %v", err)
		}
		defer store.Close()
		lg = lg.WithTrace(store)
	}

	server := api.NewServer(lg)
	registerPredictors(server, lg)
	if len(server.Names()) == 0 {
		log.Fatal("no predictors configured; set FST_PATH, NFST_PATH and/or RTN_PATH")
	}

	log.Printf("serving predictors %v on %s", server.Names(), addr)
	if err := server.Serve(addr); err != nil {
		log.Fatalf("predictor service stopped: %v", err)
	}
}

// #endregion main

// #region wiring
func registerPredictors(server *api.Server, lg *logging.Log) {
	if path := os.Getenv("FST_PATH"); path != "" {
		server.Register("fst", predictor.NewLatticePredictor(configFromEnv(path), lg))
	}
	if path := os.Getenv("NFST_PATH"); path != "" {
		server.Register("nfst", predictor.NewNDLatticePredictor(configFromEnv(path), lg))
	}
	if path := os.Getenv("RTN_PATH"); path != "" {
		cfg := predictor.DefaultRTNConfig(path)
		cfg.Config = configFromEnv(path)
		cfg.RemoveEps = envBool("RTN_RMEPS", true)
		cfg.Minimize = envBool("RTN_MINIMIZE", false)
		server.Register("rtn", predictor.NewRTNPredictor(cfg, lg))
	}
}

func configFromEnv(path string) predictor.Config {
	cfg := predictor.DefaultConfig(path)
	cfg.UseWeights = envBool("PRED_USE_WEIGHTS", cfg.UseWeights)
	cfg.Normalize = envBool("PRED_NORMALIZE", cfg.Normalize)
	cfg.SkipBosWeight = envBool("PRED_SKIP_BOS_WEIGHT", cfg.SkipBosWeight)
	cfg.ToLog = envBool("PRED_TO_LOG", cfg.ToLog)
	cfg.WeightKey = envInt("PRED_WEIGHT_KEY", cfg.WeightKey)
	cfg.Vocab.BOS = envInt("PRED_BOS_ID", cfg.Vocab.BOS)
	cfg.Vocab.EOS = envInt("PRED_EOS_ID", cfg.Vocab.EOS)
	cfg.Vocab.UNK = envInt("PRED_UNK_ID", cfg.Vocab.UNK)
	return cfg
}

// #endregion wiring

// #region env
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return n
}

// #endregion env
