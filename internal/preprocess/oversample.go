package preprocess

import (
	"math"
	"math/rand"

	"github.com/stayml/bookingcast/internal/dataset"
)

// Oversample rebalances a binary-target matrix by synthesizing minority
// rows as interpolations between a minority sample and a near minority
// neighbor. Train-partition only; ratio is the desired minority/majority
// row ratio after synthesis. The input matrix is not mutated.
func Oversample(m *dataset.Matrix, ratio float64, rng *rand.Rand) *dataset.Matrix {
	out := &dataset.Matrix{
		FeatureNames: append([]string{}, m.FeatureNames...),
		TargetName:   m.TargetName,
		X:            append([][]float64{}, m.X...),
		Y:            append([]float64{}, m.Y...),
	}
	if ratio <= 0 || len(m.Y) != len(m.X) || len(m.X) == 0 {
		return out
	}

	var minority, majority []int
	for i, y := range m.Y {
		if y >= 0.5 {
			minority = append(minority, i)
		} else {
			majority = append(majority, i)
		}
	}
	if len(minority) > len(majority) {
		minority, majority = majority, minority
	}
	if len(minority) < 2 {
		return out
	}

	want := int(ratio * float64(len(majority)))
	need := want - len(minority)
	if need <= 0 {
		return out
	}

	minorityLabel := m.Y[minority[0]]
	for s := 0; s < need; s++ {
		a := m.X[minority[rng.Intn(len(minority))]]
		b := m.X[nearestOf(m, minority, a, rng)]
		u := rng.Float64()
		row := make([]float64, len(a))
		for j := range a {
			row[j] = a[j] + u*(b[j]-a[j])
		}
		out.X = append(out.X, row)
		out.Y = append(out.Y, minorityLabel)
	}
	return out
}

// nearestOf picks the closest of a sampled candidate set rather than a
// full k-NN scan; candidate sampling keeps synthesis linear in the
// minority size.
func nearestOf(m *dataset.Matrix, minority []int, a []float64, rng *rand.Rand) int {
	const candidates = 25

	best := minority[rng.Intn(len(minority))]
	bestDist := math.Inf(1)
	for c := 0; c < candidates; c++ {
		idx := minority[rng.Intn(len(minority))]
		d := sqDist(a, m.X[idx])
		if d > 0 && d < bestDist {
			bestDist = d
			best = idx
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
