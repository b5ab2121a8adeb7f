package kernel

import "math"

// dotScalar is the reference, portable implementation every SIMD-flavored
// kernel must agree with to within 1e-2 relative error.
func dotScalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func normalizeScalar(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= inv
	}
}

var scalarImpl = kernelImpl{
	name:      "scalar",
	dot:       dotScalar,
	normalize: normalizeScalar,
}
