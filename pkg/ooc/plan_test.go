package ooc

import (
	"strings"
	"testing"

	"github.com/samcharles93/ashlar/pkg/device"
)

func planResources(free uint64, ids ...device.ID) []device.Resource {
	resources := make([]device.Resource, len(ids))
	for i, id := range ids {
		resources[i] = device.Resource{FreeMemory: free, ID: id}
	}
	return resources
}

func checkPartition(t *testing.T, n int, allocs []BlockAlloc, resources []device.Resource) {
	t.Helper()
	next := 0
	for i, al := range allocs {
		if al.Start != next {
			t.Fatalf("block %d starts at %d, want %d", i, al.Start, next)
		}
		if al.Size != al.End-al.Start || al.Size <= 0 {
			t.Fatalf("block %d has size %d for range [%d,%d)", i, al.Size, al.Start, al.End)
		}
		if al.ID != i {
			t.Fatalf("block %d carries id %d", i, al.ID)
		}
		if want := resources[i%len(resources)].ID; al.Device != want {
			t.Fatalf("block %d assigned to device %d, want %d", i, al.Device, want)
		}
		next = al.End
	}
	if next != n {
		t.Fatalf("partition covers [0,%d), want [0,%d)", next, n)
	}
}

func TestPlanPartition(t *testing.T) {
	const n = 10000
	resources := planResources(1<<30, 0, 1)
	allocs, err := Plan(n, resources, PlanOptions{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	checkPartition(t, n, allocs, resources)

	// Memory is plentiful here, so the block count is driven by the
	// per-device multiplier.
	if want := len(resources) * defaultMultiplier; len(allocs) != want {
		t.Fatalf("got %d blocks, want %d", len(allocs), want)
	}
	lo, hi := allocs[0].Size, allocs[0].Size
	for _, al := range allocs {
		lo, hi = min(lo, al.Size), max(hi, al.Size)
	}
	if hi-lo > 1 {
		t.Fatalf("block sizes spread from %d to %d, want near-equal", lo, hi)
	}
}

func TestPlanMultiplier(t *testing.T) {
	const n = 100
	resources := planResources(1<<30, 0, 1)
	allocs, err := Plan(n, resources, PlanOptions{Multiplier: 2})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	checkPartition(t, n, allocs, resources)
	if len(allocs) != 4 {
		t.Fatalf("got %d blocks, want 4", len(allocs))
	}
}

func TestPlanRespectsMemoryBound(t *testing.T) {
	const n = 4096
	const free = defaultReserve + 29_000_000
	resources := planResources(free, 0)
	allocs, err := Plan(n, resources, PlanOptions{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	checkPartition(t, n, allocs, resources)

	// Every block must fit the two-slab workspace model on the device:
	// bs*bs + 2*n*bs elements inside the usable budget.
	usable := (float64(free) - float64(defaultReserve)) * memoryHeadroom / 8
	for i, al := range allocs {
		bs := float64(al.Size)
		if need := bs*bs + 2*float64(n)*bs; need > usable {
			t.Fatalf("block %d needs %.0f elements of workspace, budget is %.0f", i, need, usable)
		}
	}
	if len(allocs) <= defaultMultiplier {
		t.Fatalf("memory bound should force more than %d blocks, got %d", defaultMultiplier, len(allocs))
	}
}

func TestPlanMaxBlockCap(t *testing.T) {
	const n = 64
	resources := planResources(1<<34, 0)
	allocs, err := Plan(n, resources, PlanOptions{MaxBlock: 8})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	checkPartition(t, n, allocs, resources)
	for i, al := range allocs {
		if al.Size > 8 {
			t.Fatalf("block %d exceeds cap: size %d", i, al.Size)
		}
	}
}

func TestPlanSmallMatrix(t *testing.T) {
	resources := planResources(1<<30, 0, 1)
	allocs, err := Plan(3, resources, PlanOptions{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	checkPartition(t, 3, allocs, resources)
	if len(allocs) != 3 {
		t.Fatalf("a 3-by-3 matrix cannot split into %d blocks", len(allocs))
	}
}

func TestPlanTooLittleMemory(t *testing.T) {
	_, err := Plan(100000, planResources(defaultReserve+1<<20, 0), PlanOptions{})
	if err == nil {
		t.Fatal("want error for starved device")
	}
	if !strings.Contains(err.Error(), "cannot factor") {
		t.Fatalf("unexpected error: %v", err)
	}

	// Free memory entirely below the reserve hits the same bound.
	if _, err := Plan(100, planResources(100<<20, 0), PlanOptions{}); err == nil {
		t.Fatal("want error when free memory is below the reserve")
	}
}

func TestPlanRejectsBadArgs(t *testing.T) {
	if _, err := Plan(0, planResources(1<<30, 0), PlanOptions{}); err == nil {
		t.Fatal("want error for zero order")
	}
	if _, err := Plan(10, nil, PlanOptions{}); err == nil {
		t.Fatal("want error for empty device list")
	}
}
