package distance

import (
	"fmt"
	"math"
	"strings"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	b = b[:len(a)]

	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	b = b[:len(a)]

	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < len(a); i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return (s0 + s1) + (s2 + s3)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// CosineDistance returns 1 - cos(a, b). If either vector has zero norm the distance is 1.
func CosineDistance(a, b []float32) float32 {
	na, nb := Dot(a, a), Dot(b, b)
	if na == 0 || nb == 0 {
		return 1
	}
	cos := float64(Dot(a, b)) / (math.Sqrt(float64(na)) * math.Sqrt(float64(nb)))
	return float32(1 - cos)
}

// NegativeDot returns -dot(a, b).
func NegativeDot(a, b []float32) float32 {
	return -Dot(a, b)
}

// Metric represents the distance metric used for vector comparison.
type Metric uint8

const (
	MetricL2 Metric = iota
	MetricCosine
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(m))
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m <= MetricDot
}

// Parse parses a metric name ("l2", "euclidean", "cosine", "dot").
func Parse(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "l2", "euclidean":
		return MetricL2, nil
	case "cosine":
		return MetricCosine, nil
	case "dot", "inner_product", "ip":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown distance metric %q", s)
	}
}

// Func is a function type for distance calculation. Smaller is closer.
type Func func(a, b []float32) float32

// Func returns the distance function for m. Unknown metrics fall back to L2.
func (m Metric) Func() Func {
	switch m {
	case MetricCosine:
		return CosineDistance
	case MetricDot:
		return NegativeDot
	default:
		return SquaredL2
	}
}

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
	return m.Func(), nil
}
