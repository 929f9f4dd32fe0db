package predictor

import "gonum.org/v1/gonum/floats"

// #region posterior
// Posterior maps symbol ids to scores for the next position.
type Posterior map[int]float64

// Finalize applies the weights-off and normalize modes in place and
// returns the posterior. Weights off replaces every score with 0;
// normalize shifts scores by their log-sum-exp so they sum to 1 in
// probability space over exactly the reachable symbols.
func Finalize(post Posterior, useWeights, normalize bool) Posterior {
	if len(post) == 0 {
		return post
	}
	if !useWeights {
		for k := range post {
			post[k] = 0
		}
	}
	if normalize {
		scores := make([]float64, 0, len(post))
		for _, v := range post {
			scores = append(scores, v)
		}
		z := floats.LogSumExp(scores)
		for k := range post {
			post[k] -= z
		}
	}
	return post
}

// #endregion posterior
