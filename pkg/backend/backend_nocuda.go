//go:build !cuda

package backend

const cudaEnabled = false

func newCUDA(devices int) (*Pool, error) {
	return nil, ErrCUDAUnavailable
}
