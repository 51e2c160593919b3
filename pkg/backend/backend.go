// Package backend selects and opens the device pool the factorization
// runs on: the host CPU, CUDA GPUs when compiled in, or automatic
// negotiation between the two.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/ashlar/pkg/device"
	"github.com/samcharles93/ashlar/pkg/device/host"
)

const (
	CPU  = "cpu"
	CUDA = "cuda"
	Auto = "auto"
)

// ErrCUDAUnavailable reports a cuda request against a build without the
// cuda tag or a machine without usable devices.
var ErrCUDAUnavailable = errors.New("cuda backend is not available in this build")

// Pool is an opened set of device resources ready for registration.
type Pool struct {
	name      string
	resources []device.Resource
}

// Name returns the backend the pool was opened on, cpu or cuda.
func (p *Pool) Name() string { return p.name }

// Resources returns the pool's devices in id order.
func (p *Pool) Resources() []device.Resource { return p.resources }

// Close releases every device context in the pool.
func (p *Pool) Close() error {
	var errs []error
	for _, r := range p.resources {
		if err := r.Handle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	switch backend {
	case CPU, CUDA, Auto:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, cpu, or cuda)", backend)
	}
}

// Open builds a device pool on the named backend. devices caps the pool
// size; zero or negative means one cpu device or every visible gpu. Auto
// prefers cuda when it is compiled in and probes successfully.
func Open(name string, devices int) (*Pool, error) {
	normalized, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	switch normalized {
	case CPU:
		return newCPU(devices), nil
	case CUDA:
		return newCUDA(devices)
	default:
		if cudaEnabled {
			if pool, err := newCUDA(devices); err == nil {
				return pool, nil
			}
		}
		return newCPU(devices), nil
	}
}

// newCPU splits the host's free memory into the requested number of
// budgeted contexts, so one machine emulates a multi-device pool.
func newCPU(devices int) *Pool {
	if devices <= 0 {
		devices = 1
	}
	share := host.Detect() / uint64(devices)
	resources := make([]device.Resource, devices)
	for i := range devices {
		resources[i] = device.Resource{
			FreeMemory: share,
			Handle:     host.New(device.ID(i), share),
			ID:         device.ID(i),
		}
	}
	return &Pool{name: CPU, resources: resources}
}
