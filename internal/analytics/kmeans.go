package analytics

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

const (
	kmeansSeed     = 42
	kmeansRestarts = 10
	kmeansMaxIter  = 300
)

type clustering struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

// kmeans clusters points into k groups with k-means++ seeding. The best of
// several seeded restarts by inertia wins; the result depends only on the
// points and their order.
func kmeans(points [][]float64, k int) clustering {
	rng := rand.New(rand.NewSource(kmeansSeed))
	var best clustering
	for run := 0; run < kmeansRestarts; run++ {
		c := lloyd(points, seedCentroids(points, k, rng))
		if run == 0 || c.inertia < best.inertia {
			best = c
		}
	}
	return best
}

func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(len(points))]))
	dist := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			dist[i] = nearestDist(p, centroids)
			total += dist[i]
		}
		if total == 0 {
			centroids = append(centroids, clone(points[rng.Intn(len(points))]))
			continue
		}
		target := rng.Float64() * total
		pick := len(points) - 1
		for i, d := range dist {
			target -= d
			if target <= 0 {
				pick = i
				break
			}
		}
		centroids = append(centroids, clone(points[pick]))
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64) clustering {
	k, dim := len(centroids), len(points[0])
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, p := range points {
			l := nearest(p, centroids)
			if l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		if !changed {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			counts[labels[i]]++
			for d, v := range p {
				sums[labels[i]][d] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // an empty cluster keeps its last centroid
			}
			for d := range sums[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	var inertia float64
	for i, p := range points {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return clustering{labels: labels, centroids: centroids, inertia: inertia}
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, ctr := range centroids {
		if d := sqDist(p, ctr); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func nearestDist(p []float64, centroids [][]float64) float64 {
	return sqDist(p, centroids[nearest(p, centroids)])
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}

// standardize scales every feature column to zero mean and unit population
// variance. Constant features are only centred.
func standardize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	dim := len(rows[0])
	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = make([]float64, dim)
	}
	col := make([]float64, len(rows))
	for d := 0; d < dim; d++ {
		for i, r := range rows {
			col[i] = r[d]
		}
		m, s := stat.PopMeanStdDev(col, nil)
		if s == 0 || math.IsNaN(s) {
			s = 1
		}
		for i, r := range rows {
			out[i][d] = (r[d] - m) / s
		}
	}
	return out
}
