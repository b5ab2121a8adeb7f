//go:build amd64

package kernel

import (
	"math"

	"golang.org/x/sys/cpu"
)

// selectImpl picks the AVX2-shaped two-accumulator kernel when the host
// advertises wide SIMD support, else falls back to scalar. There is no
// hand-written AVX assembly here (Go requires cgo or .s files for real
// SIMD intrinsics); instead the wide loop shape — 16 lanes per iteration
// via two accumulators, reduced at the end, with a scalar tail — is
// expressed directly in Go. The compiler's auto-vectorization on amd64
// targets is then free to use the wide registers the CPUID check
// confirms are present.
func selectImpl() kernelImpl {
	if cpu.X86.HasAVX2 {
		return kernelImpl{name: "avx2-unrolled16", dot: dotAVX2Shaped, normalize: normalizeAVX2Shaped}
	}
	return scalarImpl
}

const wideBlock = 16

func dotAVX2Shaped(a, b []float32) float32 {
	n := len(a)
	blocks := n - n%wideBlock

	var acc0, acc1 float32
	for i := 0; i < blocks; i += wideBlock {
		for j := 0; j < wideBlock/2; j++ {
			acc0 += a[i+j] * b[i+j]
		}
		for j := wideBlock / 2; j < wideBlock; j++ {
			acc1 += a[i+j] * b[i+j]
		}
	}

	sum := acc0 + acc1
	for i := blocks; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func normalizeAVX2Shaped(v []float32) {
	n := len(v)
	blocks := n - n%wideBlock

	var acc0, acc1 float64
	for i := 0; i < blocks; i += wideBlock {
		for j := 0; j < wideBlock/2; j++ {
			acc0 += float64(v[i+j]) * float64(v[i+j])
		}
		for j := wideBlock / 2; j < wideBlock; j++ {
			acc1 += float64(v[i+j]) * float64(v[i+j])
		}
	}
	sumSq := acc0 + acc1
	for i := blocks; i < n; i++ {
		sumSq += float64(v[i]) * float64(v[i])
	}

	if sumSq == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= inv
	}
}
