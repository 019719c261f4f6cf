package model

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/stayml/bookingcast/internal/dataset"
	"github.com/stayml/bookingcast/internal/platform/apperr"
)

// SearchSpace enumerates the hyperparameter values randomized search may
// draw from. Empty dimensions fall back to the provided default.
type SearchSpace struct {
	Iterations   int
	Folds        int
	NumTrees     []int
	LearningRate []float64
	MaxDepth     []int
	MinLeaf      []int
	Subsample    []float64
}

type CandidateResult struct {
	Params   Params    `json:"params"`
	MeanAUC  float64   `json:"mean_auc"`
	FoldAUCs []float64 `json:"fold_aucs"`
}

// RandomizedSearch draws candidate hyperparameter sets and scores each by
// k-fold cross-validated AUC. Folds are drawn exclusively from the given
// matrix, which must be the training partition; the held-out test
// partition is never involved in selection. Candidates evaluate in
// parallel; the seed fixes both the draw and the fold assignment.
func RandomizedSearch(ctx context.Context, m *dataset.Matrix, space SearchSpace, defaults Params, seed int64) (Params, []CandidateResult, error) {
	if space.Folds < 2 {
		space.Folds = 5
	}
	if space.Iterations < 1 {
		space.Iterations = 10
	}
	if m.NumRows() < space.Folds*2 {
		return Params{}, nil, apperr.Model("search", fmt.Errorf("%d rows is too few for %d-fold cross-validation", m.NumRows(), space.Folds))
	}

	rng := rand.New(rand.NewSource(seed))
	candidates := drawCandidates(space, defaults, rng)
	folds := foldIndices(m.NumRows(), space.Folds, rng)

	results := make([]CandidateResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for ci, cand := range candidates {
		g.Go(func() error {
			res := CandidateResult{Params: cand}
			for f := range folds {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				trainM, valM := splitFold(m, folds, f)
				// Per-fold seed derives from the search seed so a rerun
				// reproduces every fold model exactly.
				e, err := Fit(trainM, cand, seed+int64(ci*space.Folds+f))
				if err != nil {
					return err
				}
				probs := make([]float64, len(valM.X))
				for i, x := range valM.X {
					probs[i] = e.PredictProba(x)
				}
				res.FoldAUCs = append(res.FoldAUCs, rocAUC(valM.Y, probs))
			}
			var sum float64
			for _, a := range res.FoldAUCs {
				sum += a
			}
			res.MeanAUC = sum / float64(len(res.FoldAUCs))
			results[ci] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Params{}, nil, err
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].MeanAUC > results[b].MeanAUC })
	return results[0].Params, results, nil
}

func drawCandidates(space SearchSpace, defaults Params, rng *rand.Rand) []Params {
	seen := map[Params]bool{}
	var out []Params
	for i := 0; i < space.Iterations; i++ {
		p := Params{
			NumTrees:     pickInt(space.NumTrees, defaults.NumTrees, rng),
			LearningRate: pickFloat(space.LearningRate, defaults.LearningRate, rng),
			MaxDepth:     pickInt(space.MaxDepth, defaults.MaxDepth, rng),
			MinLeaf:      pickInt(space.MinLeaf, defaults.MinLeaf, rng),
			Subsample:    pickFloat(space.Subsample, defaults.Subsample, rng),
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, defaults)
	}
	return out
}

func pickInt(vals []int, def int, rng *rand.Rand) int {
	if len(vals) == 0 {
		return def
	}
	return vals[rng.Intn(len(vals))]
}

func pickFloat(vals []float64, def float64, rng *rand.Rand) float64 {
	if len(vals) == 0 {
		return def
	}
	return vals[rng.Intn(len(vals))]
}

// foldIndices shuffles row indices and deals them into k folds.
func foldIndices(n, k int, rng *rand.Rand) [][]int {
	perm := rng.Perm(n)
	folds := make([][]int, k)
	for i, idx := range perm {
		folds[i%k] = append(folds[i%k], idx)
	}
	return folds
}

func splitFold(m *dataset.Matrix, folds [][]int, holdout int) (train, val *dataset.Matrix) {
	train = &dataset.Matrix{FeatureNames: m.FeatureNames, TargetName: m.TargetName}
	val = &dataset.Matrix{FeatureNames: m.FeatureNames, TargetName: m.TargetName}
	for f, rows := range folds {
		dst := train
		if f == holdout {
			dst = val
		}
		for _, r := range rows {
			dst.X = append(dst.X, m.X[r])
			dst.Y = append(dst.Y, m.Y[r])
		}
	}
	return train, val
}
