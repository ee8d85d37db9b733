package zoning

import (
	"math"
	"math/rand"
)

const maxIterations = 100

// standardize z-scores each column in place so no single aggregate
// dominates the distance metric.
func standardize(points [][]float64) {
	if len(points) == 0 {
		return
	}
	dims := len(points[0])
	n := float64(len(points))
	for d := 0; d < dims; d++ {
		mean := 0.0
		for _, p := range points {
			mean += p[d]
		}
		mean /= n
		variance := 0.0
		for _, p := range points {
			diff := p[d] - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / n)
		if std == 0 {
			std = 1
		}
		for _, p := range points {
			p[d] = (p[d] - mean) / std
		}
	}
}

// kmeans runs seeded Lloyd's iteration with k-means++ style initialization.
// The fixed seed makes cluster ids reproducible across retrains on the same
// corpus.
func kmeans(points [][]float64, k int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	dims := len(points[0])

	// k-means++ seeding: first center uniform, the rest proportional to
	// squared distance from the nearest chosen center.
	centers := make([][]float64, 0, k)
	first := rng.Intn(len(points))
	centers = append(centers, append([]float64(nil), points[first]...))
	dist := make([]float64, len(points))
	for len(centers) < k {
		total := 0.0
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centers {
				if dd := sqDist(p, c); dd < d {
					d = dd
				}
			}
			dist[i] = d
			total += d
		}
		next := 0
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range dist {
				cum += d
				if cum >= target {
					next = i
					break
				}
			}
		} else {
			next = rng.Intn(len(points))
		}
		centers = append(centers, append([]float64(nil), points[next]...))
	}

	assignment := make([]int, len(points))
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := 0
			bestDist := sqDist(p, centers[0])
			for c := 1; c < k; c++ {
				if d := sqDist(p, centers[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		for c := range centers {
			for d := 0; d < dims; d++ {
				centers[c][d] = 0
			}
		}
		for i, p := range points {
			c := assignment[i]
			counts[c]++
			for d := 0; d < dims; d++ {
				centers[c][d] += p[d]
			}
		}
		for c := range centers {
			if counts[c] == 0 {
				// Re-seed an empty cluster from a random point.
				copy(centers[c], points[rng.Intn(len(points))])
				continue
			}
			for d := 0; d < dims; d++ {
				centers[c][d] /= float64(counts[c])
			}
		}
	}
	return assignment
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
