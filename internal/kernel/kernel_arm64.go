//go:build arm64

package kernel

import (
	"math"

	"golang.org/x/sys/cpu"
)

// selectImpl picks the NEON-shaped four-accumulator kernel when the host
// advertises Advanced SIMD (true on essentially all arm64 hosts), else
// falls back to scalar.
func selectImpl() kernelImpl {
	if cpu.ARM64.HasASIMD {
		return kernelImpl{name: "neon-unrolled16", dot: dotNEONShaped, normalize: normalizeNEONShaped}
	}
	return scalarImpl
}

const neonBlock = 16
const neonLanes = 4

func dotNEONShaped(a, b []float32) float32 {
	n := len(a)
	blocks := n - n%neonBlock

	var acc [neonLanes]float32
	for i := 0; i < blocks; i += neonBlock {
		for lane := 0; lane < neonLanes; lane++ {
			base := i + lane*neonLanes
			for j := 0; j < neonLanes; j++ {
				acc[lane] += a[base+j] * b[base+j]
			}
		}
	}

	sum := acc[0] + acc[1] + acc[2] + acc[3]
	for i := blocks; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func normalizeNEONShaped(v []float32) {
	n := len(v)
	blocks := n - n%neonBlock

	var acc [neonLanes]float64
	for i := 0; i < blocks; i += neonBlock {
		for lane := 0; lane < neonLanes; lane++ {
			base := i + lane*neonLanes
			for j := 0; j < neonLanes; j++ {
				acc[lane] += float64(v[base+j]) * float64(v[base+j])
			}
		}
	}
	sumSq := acc[0] + acc[1] + acc[2] + acc[3]
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
