//go:build !amd64 && !arm64

package kernel

// selectImpl falls back to the scalar kernel on architectures without a
// wide-SIMD-shaped variant defined here.
func selectImpl() kernelImpl {
	return scalarImpl
}
