package preprocess

import "sort"

// quantile returns the linearly interpolated q-th quantile of values.
// values need not be sorted; an empty slice yields 0.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

func median(values []float64) float64 {
	return quantile(values, 0.5)
}

// mode returns the most frequent value; ties break to the
// lexicographically smallest so fitting is deterministic.
func mode(values []string) string {
	counts := map[string]int{}
	for _, v := range values {
		counts[v]++
	}
	best := ""
	bestCount := -1
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best = v
			bestCount = n
		}
	}
	return best
}
