package ooc

import (
	"fmt"
	"sort"

	"github.com/samcharles93/ashlar/pkg/device"
)

// BlockAlloc assigns one block column of the matrix to a device: the
// half-open diagonal range [Start,End), the edge length Size of the square
// diagonal block (always End-Start), the owning device, and a dense id
// used in error reports and logs.
type BlockAlloc struct {
	Start, End int
	Size       int
	Device     device.ID
	ID         int
}

// validateAllocs checks that the allocations partition [0,n) with
// consistent sizes, unique ids, and registered devices, and returns them
// sorted by Start. Validation happens before any device work is issued.
func validateAllocs(n int, allocs []BlockAlloc, reg *device.Registry) ([]BlockAlloc, error) {
	if len(allocs) == 0 {
		return nil, &AllocError{Index: 0, Reason: "empty allocation set"}
	}
	out := make([]BlockAlloc, len(allocs))
	copy(out, allocs)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	seen := make(map[int]struct{}, len(out))
	next := 0
	for i, al := range out {
		if al.Size <= 0 || al.Size != al.End-al.Start {
			return nil, &AllocError{
				Index:  i,
				Reason: fmt.Sprintf("size %d inconsistent with range [%d,%d)", al.Size, al.Start, al.End),
			}
		}
		if al.Start < next {
			return nil, &AllocError{
				Index:  i,
				Reason: fmt.Sprintf("range [%d,%d) overlaps the previous block", al.Start, al.End),
			}
		}
		if al.Start > next {
			return nil, &AllocError{
				Index:  i,
				Reason: fmt.Sprintf("gap before offset %d", al.Start),
			}
		}
		next = al.End
		if _, dup := seen[al.ID]; dup {
			return nil, &AllocError{Index: i, Reason: fmt.Sprintf("duplicate block id %d", al.ID)}
		}
		seen[al.ID] = struct{}{}
		if _, ok := reg.Handle(al.Device); !ok {
			return nil, &AllocError{Index: i, Reason: fmt.Sprintf("device %d not registered", al.Device)}
		}
	}
	if next != n {
		return nil, &AllocError{
			Index:  len(out) - 1,
			Reason: fmt.Sprintf("allocations cover [0,%d), matrix order is %d", next, n),
		}
	}
	return out, nil
}
