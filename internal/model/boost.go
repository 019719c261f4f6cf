// Package model implements the gradient-boosted tree classifier: a
// logistic-loss ensemble of shallow regression trees fitted with Newton
// leaf updates, plus evaluation metrics and randomized hyperparameter
// search. The flat tree layout serializes to JSON inside the model
// artifact.
package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/stayml/bookingcast/internal/dataset"
	"github.com/stayml/bookingcast/internal/platform/apperr"
)

// Params are the boosting hyperparameters. Subsample is the per-tree row
// sampling fraction in (0,1].
type Params struct {
	NumTrees     int     `json:"num_trees"`
	LearningRate float64 `json:"learning_rate"`
	MaxDepth     int     `json:"max_depth"`
	MinLeaf      int     `json:"min_leaf"`
	Subsample    float64 `json:"subsample"`
}

// An Ensemble is a bias term plus the sum of its component trees on the
// logit scale. Leaf outputs are stored pre-scaled by the learning rate.
type Ensemble struct {
	Bias   float64        `json:"bias"`
	Trees  []DecisionTree `json:"trees"`
	Params Params         `json:"params"`
}

// Score returns the raw logit for a feature vector.
func (e *Ensemble) Score(x []float64) float64 {
	sum := e.Bias
	for i := range e.Trees {
		sum += e.Trees[i].Evaluate(x)
	}
	return sum
}

// PredictProba returns the probability of the positive class.
func (e *Ensemble) PredictProba(x []float64) float64 {
	return sigmoid(e.Score(x))
}

// Predict returns the 0/1 class at the 0.5 threshold.
func (e *Ensemble) Predict(x []float64) int {
	if e.PredictProba(x) >= 0.5 {
		return 1
	}
	return 0
}

const l2Lambda = 1.0

// Fit trains a logistic-loss gradient-boosted ensemble on a binary-target
// matrix. The seed makes row subsampling deterministic; identical inputs
// produce identical ensembles.
func Fit(m *dataset.Matrix, p Params, seed int64) (*Ensemble, error) {
	n := m.NumRows()
	if n == 0 {
		return nil, apperr.Model("fit", fmt.Errorf("empty training matrix"))
	}
	if len(m.Y) != n {
		return nil, apperr.Model("fit", fmt.Errorf("target vector has %d rows for %d feature rows", len(m.Y), n))
	}
	var pos int
	for _, y := range m.Y {
		if y != 0 && y != 1 {
			return nil, apperr.Model("fit", fmt.Errorf("target values must be 0 or 1, got %v", y))
		}
		if y == 1 {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return nil, apperr.Model("fit", fmt.Errorf("training data contains a single class"))
	}

	rng := rand.New(rand.NewSource(seed))

	// F0 = log-odds of the base rate.
	prior := float64(pos) / float64(n)
	e := &Ensemble{Bias: math.Log(prior / (1 - prior)), Params: p}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = e.Bias
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	for t := 0; t < p.NumTrees; t++ {
		for i := 0; i < n; i++ {
			prob := sigmoid(scores[i])
			grad[i] = m.Y[i] - prob
			hess[i] = prob * (1 - prob)
		}

		rows := sampleRows(n, p.Subsample, rng)
		root := growTree(m.X, grad, hess, rows, p, 0)
		tree := flatten(root, m.NumFeatures())
		for i := range tree.Outputs {
			tree.Outputs[i] *= p.LearningRate
		}
		e.Trees = append(e.Trees, tree)

		for i := 0; i < n; i++ {
			scores[i] += tree.Evaluate(m.X[i])
		}
	}
	return e, nil
}

func sampleRows(n int, fraction float64, rng *rand.Rand) []int {
	if fraction >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	k := int(fraction * float64(n))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	sort.Ints(perm)
	return perm
}

// growTree builds one regression tree on the Newton gradients of the
// sampled rows.
func growTree(x [][]float64, grad, hess []float64, rows []int, p Params, depth int) *buildNode {
	var sumG, sumH float64
	for _, i := range rows {
		sumG += grad[i]
		sumH += hess[i]
	}
	leaf := &buildNode{leaf: true, value: sumG / (sumH + l2Lambda)}
	if depth >= p.MaxDepth || len(rows) < 2*p.MinLeaf {
		return leaf
	}

	feature, threshold, ok := bestSplit(x, grad, hess, rows, p.MinLeaf, sumG, sumH)
	if !ok {
		return leaf
	}

	var left, right []int
	for _, i := range rows {
		if x[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &buildNode{
		feature:   feature,
		threshold: threshold,
		left:      growTree(x, grad, hess, left, p, depth+1),
		right:     growTree(x, grad, hess, right, p, depth+1),
	}
}

const maxSplitCandidates = 32

// bestSplit scans every feature for the threshold with the largest gain
// over keeping the node whole. Candidate thresholds are midpoints between
// distinct sorted values, thinned to quantiles for wide columns.
func bestSplit(x [][]float64, grad, hess []float64, rows []int, minLeaf int, sumG, sumH float64) (int, float64, bool) {
	parentScore := sumG * sumG / (sumH + l2Lambda)

	bestGain := 1e-12
	bestFeature := -1
	bestThreshold := 0.0

	numFeatures := len(x[rows[0]])
	vals := make([]float64, len(rows))
	for f := 0; f < numFeatures; f++ {
		for i, r := range rows {
			vals[i] = x[r][f]
		}
		for _, threshold := range candidateThresholds(vals) {
			var gl, hl float64
			var nl int
			for _, r := range rows {
				if x[r][f] < threshold {
					gl += grad[r]
					hl += hess[r]
					nl++
				}
			}
			nr := len(rows) - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			gr := sumG - gl
			hr := sumH - hl
			gain := gl*gl/(hl+l2Lambda) + gr*gr/(hr+l2Lambda) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func candidateThresholds(vals []float64) []float64 {
	sorted := append([]float64{}, vals...)
	sort.Float64s(sorted)

	distinct := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) < 2 {
		return nil
	}

	if len(distinct) <= maxSplitCandidates+1 {
		out := make([]float64, 0, len(distinct)-1)
		for i := 1; i < len(distinct); i++ {
			out = append(out, (distinct[i-1]+distinct[i])/2)
		}
		return out
	}

	out := make([]float64, 0, maxSplitCandidates)
	step := float64(len(distinct)-1) / float64(maxSplitCandidates+1)
	prev := math.Inf(-1)
	for c := 1; c <= maxSplitCandidates; c++ {
		i := int(float64(c) * step)
		if i < 1 {
			i = 1
		}
		th := (distinct[i-1] + distinct[i]) / 2
		if th != prev {
			out = append(out, th)
			prev = th
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
