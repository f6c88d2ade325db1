package utils

import "math"

// TopK returns the indices and values of the k largest elements in
// descending value order. k is clamped to len(scores). Equal values rank
// by ascending index, so repeated calls over the same scores are
// deterministic.
func TopK(scores []float64, k int) ([]int, []float64) {
	if k > len(scores) {
		k = len(scores)
	}
	if k < 0 {
		k = 0
	}

	type pair struct {
		index int
		value float64
	}

	pairs := make([]pair, len(scores))
	for i, v := range scores {
		pairs[i] = pair{i, v}
	}

	// Partial selection sort: only the first k positions are ordered.
	for i := 0; i < k; i++ {
		best := i
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].value > pairs[best].value ||
				(pairs[j].value == pairs[best].value && pairs[j].index < pairs[best].index) {
				best = j
			}
		}
		pairs[i], pairs[best] = pairs[best], pairs[i]
	}

	indices := make([]int, k)
	values := make([]float64, k)
	for i := 0; i < k; i++ {
		indices[i] = pairs[i].index
		values[i] = pairs[i].value
	}

	return indices, values
}

// Dot computes the dot product of two embedding rows, accumulating in
// float64.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		panic("vectors must have same length")
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm computes the L2 norm of an embedding row.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. A zero vector comes back as
// a zero-valued copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := Norm(v)
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Add returns the element-wise sum a + b.
func Add(a, b []float32) []float32 {
	if len(a) != len(b) {
		panic("vectors must have same length")
	}

	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// Sub returns the element-wise difference a - b.
func Sub(a, b []float32) []float32 {
	if len(a) != len(b) {
		panic("vectors must have same length")
	}

	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
