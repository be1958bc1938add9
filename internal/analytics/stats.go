package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// stddev with ddof 0 is the population deviation, ddof 1 the sample one.
func stddev(xs []float64, ddof int) float64 {
	if len(xs)-ddof <= 0 {
		return 0
	}
	if ddof == 0 {
		_, sd := stat.PopMeanStdDev(xs, nil)
		return sd
	}
	return stat.StdDev(xs, nil)
}

// pearson returns the correlation of xs and ys. It is undefined for fewer
// than two pairs or a constant series.
func pearson(xs, ys []float64) (float64, bool) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

// share splits v evenly over n parts.
func share(v float64, n int) float64 {
	if n <= 1 {
		return v
	}
	return v / float64(n)
}
