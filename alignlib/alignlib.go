// Package alignlib evaluates how well a fitted model recovers a known
// latent-state structure.  A model's per-state emission probabilities are
// unlabeled, so they are first aligned to the true states by the label
// permutation minimizing total Kullback-Leibler divergence; agreement of
// the reconstructed state sequence is then measured directly.
package alignlib

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/combin"
)

// ErrShapeMismatch indicates sequences or matrices of incompatible sizes.
var ErrShapeMismatch = errors.New("alignlib: shape mismatch")

// Divergence returns the Kullback-Leibler divergence D(p||q), the sum of
// p[i]*log(p[i]/q[i]).  It is zero when the distributions are identical
// and positive otherwise; StateMatch minimizes its total.  Components of
// q must be strictly positive wherever p is nonzero; that is a caller
// precondition and is not checked here.
func Divergence(p, q []float64) (float64, error) {

	if len(p) != len(q) {
		return 0, fmt.Errorf("%w: len(p)=%d, len(q)=%d", ErrShapeMismatch, len(p), len(q))
	}

	return stat.KullbackLeibler(p, q), nil
}

// StateMatch aligns a model's unlabeled per-state emission distributions
// to the true per-state distributions.  Every permutation of state labels
// is scored by its total divergence and the minimizing permutation wins,
// ties broken by enumeration order.  The returned matrix holds the model
// distributions reordered so that row i corresponds to true state i; the
// score is the winning permutation's total divergence.
//
// The search is exhaustive over all n! permutations of n states, so it is
// only usable for small state counts.
func StateMatch(model, truth [][]float64) ([][]float64, float64, error) {

	n := len(truth)
	if len(model) != n {
		return nil, 0, fmt.Errorf("%w: %d model states, %d true states", ErrShapeMismatch, len(model), n)
	}
	if n == 0 {
		return nil, 0, fmt.Errorf("%w: no states to match", ErrShapeMismatch)
	}
	m := len(truth[0])
	for i := 0; i < n; i++ {
		if len(truth[i]) != m || len(model[i]) != m {
			return nil, 0, fmt.Errorf("%w: state %d: model distribution has %d components, true has %d, want %d",
				ErrShapeMismatch, i, len(model[i]), len(truth[i]), m)
		}
	}

	terms := make([]float64, n)
	perm := make([]int, n)
	var best []int
	var bestScore float64

	gen := combin.NewPermutationGenerator(n, n)
	for gen.Next() {
		gen.Permutation(perm)
		for i := 0; i < n; i++ {
			terms[i] = stat.KullbackLeibler(model[i], truth[perm[i]])
		}
		score := floats.Sum(terms)
		if best == nil || score < bestScore {
			bestScore = score
			best = append(best[:0], perm...)
		}
	}

	out := make([][]float64, n)
	for i, j := range best {
		out[j] = model[i]
	}

	return out, bestScore, nil
}

// Coverage returns the fraction of time steps at which the predicted
// state label equals the true label.
func Coverage(truth, predicted []int) (float64, error) {

	if len(truth) != len(predicted) {
		return 0, fmt.Errorf("%w: %d true labels, %d predicted", ErrShapeMismatch, len(truth), len(predicted))
	}
	if len(truth) == 0 {
		return 0, fmt.Errorf("%w: empty label sequences", ErrShapeMismatch)
	}

	var agree int
	for t := range truth {
		if truth[t] == predicted[t] {
			agree++
		}
	}

	return float64(agree) / float64(len(truth)), nil
}

// ArgmaxStates collapses a (states x time) matrix of per-state
// probabilities into hard state assignments, taking the state with the
// highest probability at each time step.  Ties go to the lowest state id.
func ArgmaxStates(probs [][]float64) ([]int, error) {

	if len(probs) == 0 {
		return nil, fmt.Errorf("%w: no states", ErrShapeMismatch)
	}
	nt := len(probs[0])
	for i := range probs {
		if len(probs[i]) != nt {
			return nil, fmt.Errorf("%w: state %d spans %d time steps, state 0 spans %d",
				ErrShapeMismatch, i, len(probs[i]), nt)
		}
	}

	labels := make([]int, nt)
	for t := 0; t < nt; t++ {
		j := 0
		v := probs[0][t]
		for s := 1; s < len(probs); s++ {
			if probs[s][t] > v {
				v = probs[s][t]
				j = s
			}
		}
		labels[t] = j
	}

	return labels, nil
}
