//go:build cuda

package backend

import (
	"fmt"

	"github.com/samcharles93/ashlar/pkg/device/cuda"
)

const cudaEnabled = true

func newCUDA(devices int) (*Pool, error) {
	resources, err := cuda.Enumerate(devices)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCUDAUnavailable, err)
	}
	return &Pool{name: CUDA, resources: resources}, nil
}
