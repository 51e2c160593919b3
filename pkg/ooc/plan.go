package ooc

import (
	"fmt"
	"math"

	"github.com/samcharles93/ashlar/pkg/device"
)

// PlanOptions tunes how Plan partitions a matrix.
type PlanOptions struct {
	// Multiplier is the target number of blocks per device, so trailing
	// updates spread across the pool. Zero means 6.
	Multiplier int
	// Reserve is memory held back on every device before sizing
	// workspaces. Zero means 300 MiB.
	Reserve uint64
	// MaxBlock caps the block edge length on top of the memory bound.
	// Zero means no extra cap.
	MaxBlock int
}

const (
	defaultMultiplier = 6
	defaultReserve    = 300 << 20
	memoryHeadroom    = 0.95
)

// Plan partitions an n-by-n matrix into block columns and assigns them
// round-robin to the given devices.
//
// Block sizes come from the out-of-core workspace model: each device holds
// two column slabs, bs*bs + 2*n*bs elements, which must fit in the usable
// memory of the tightest device. Usable memory is the reported free memory
// minus the reserve, scaled by a safety headroom.
func Plan(n int, resources []device.Resource, opt PlanOptions) ([]BlockAlloc, error) {
	if n <= 0 {
		return nil, fmt.Errorf("plan: matrix order must be positive, got %d", n)
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("plan: no devices")
	}
	mult := opt.Multiplier
	if mult <= 0 {
		mult = defaultMultiplier
	}
	reserve := opt.Reserve
	if reserve == 0 {
		reserve = defaultReserve
	}

	minElems := math.MaxFloat64
	for _, r := range resources {
		usable := (float64(r.FreeMemory) - float64(reserve)) * memoryHeadroom
		if elems := usable / 8; elems < minElems {
			minElems = elems
		}
	}

	// bs^2 + 2*n*bs <= R solved for bs.
	nf := float64(n)
	maxBS := 0
	if minElems > 0 {
		maxBS = int(math.Floor((math.Sqrt(4*nf*nf+4*minElems) - 2*nf) / 2))
	}
	if maxBS < 1 {
		return nil, &PlanError{N: n, Usable: math.Max(minElems, 0) * 8}
	}
	if opt.MaxBlock > 0 && maxBS > opt.MaxBlock {
		maxBS = opt.MaxBlock
	}
	maxBS = min(maxBS, n)

	blocks := (n + maxBS - 1) / maxBS
	if target := len(resources) * mult; blocks < target {
		blocks = min(target, n)
	}

	base, rem := n/blocks, n%blocks
	allocs := make([]BlockAlloc, 0, blocks)
	start := 0
	for i := range blocks {
		bs := base
		if i < rem {
			bs++
		}
		allocs = append(allocs, BlockAlloc{
			Start:  start,
			End:    start + bs,
			Size:   bs,
			Device: resources[i%len(resources)].ID,
			ID:     i,
		})
		start += bs
	}
	return allocs, nil
}
