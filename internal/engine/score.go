package engine

import (
	"math"

	"github.com/vexdb/vexdb/internal/domain"
)

// Scoring follows a single convention: higher score = more similar. Euclidean
// distance is folded into that convention by negating the squared distance,
// which is monotonic in the true distance.

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func squaredL2(a, b []float32) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// cosine returns 0 when either vector has zero norm.
func cosine(a, b []float32) float32 {
	na := float32(math.Sqrt(float64(dot(a, a))))
	nb := float32(math.Sqrt(float64(dot(b, b))))
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func score(metric domain.Metric, q, v []float32) float32 {
	switch metric {
	case domain.MetricCosine:
		return cosine(q, v)
	case domain.MetricDot:
		return dot(q, v)
	default:
		return -squaredL2(q, v)
	}
}
