package ooc

import (
	"errors"
	"fmt"

	"github.com/samcharles93/ashlar/pkg/device"
)

// ErrNotPositiveDefinite matches every *NumericalError through errors.Is,
// for callers that only care whether the input was SPD.
var ErrNotPositiveDefinite = errors.New("matrix is not positive definite")

// AllocError reports an invalid block allocation set, before any compute
// is issued.
type AllocError struct {
	Index  int
	Reason string
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("block allocation %d: %s", e.Index, e.Reason)
}

// PlanError reports that no feasible block size exists for a matrix
// order against the pool's memory budget.
type PlanError struct {
	N      int
	Usable float64 // bytes on the tightest device after reserve and headroom
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan: cannot factor a %d-by-%d matrix with %.2f MiB of usable device memory",
		e.N, e.N, e.Usable/(1<<20))
}

// NumericalError reports a factorization that hit a non-positive-definite
// diagonal block. The job aborts and the output buffer is undefined.
type NumericalError struct {
	Block  int
	Device device.ID
	Minor  int
}

func (e *NumericalError) Is(target error) bool {
	return target == ErrNotPositiveDefinite
}

func (e *NumericalError) Error() string {
	msg := fmt.Sprintf("cholesky failed on block %d (device %d): matrix is not positive definite",
		e.Block, e.Device)
	if e.Minor > 0 {
		msg += fmt.Sprintf(" (leading minor of order %d)", e.Minor)
	}
	return msg
}
