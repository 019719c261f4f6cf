package model

import (
	"fmt"
	"sort"

	"github.com/stayml/bookingcast/internal/dataset"
	"github.com/stayml/bookingcast/internal/platform/apperr"
)

type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       float64 `json:"auc"`
}

// Evaluate scores the ensemble against a labelled matrix at the 0.5
// decision threshold.
func Evaluate(e *Ensemble, m *dataset.Matrix) (Metrics, error) {
	if len(m.Y) != len(m.X) || len(m.X) == 0 {
		return Metrics{}, apperr.Model("evaluate", fmt.Errorf("evaluation matrix must be labelled and non-empty"))
	}
	probs := make([]float64, len(m.X))
	for i, x := range m.X {
		probs[i] = e.PredictProba(x)
	}
	return MetricsFromScores(m.Y, probs, 0.5), nil
}

// MetricsFromScores computes the classification metrics for known labels
// and predicted positive-class probabilities.
func MetricsFromScores(yTrue, probs []float64, threshold float64) Metrics {
	var tp, fp, tn, fn float64
	for i, y := range yTrue {
		predicted := probs[i] >= threshold
		actual := y >= 0.5
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		default:
			tn++
		}
	}

	m := Metrics{}
	total := tp + fp + tn + fn
	if total > 0 {
		m.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.AUC = rocAUC(yTrue, probs)
	return m
}

// rocAUC is the Mann-Whitney rank statistic with tied scores assigned
// average ranks. Degenerate single-class inputs score 0.
func rocAUC(yTrue, probs []float64) float64 {
	n := len(yTrue)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[idx[j]] == probs[idx[i]] {
			j++
		}
		// ranks are 1-based; ties share the average rank of their block
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var posRankSum, pos float64
	for i, y := range yTrue {
		if y >= 0.5 {
			posRankSum += ranks[i]
			pos++
		}
	}
	neg := float64(n) - pos
	if pos == 0 || neg == 0 {
		return 0
	}
	return (posRankSum - pos*(pos+1)/2) / (pos * neg)
}
