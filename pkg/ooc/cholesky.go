package ooc

import (
	"log/slog"

	"github.com/samcharles93/ashlar/pkg/device"
	"github.com/samcharles93/ashlar/pkg/mat"
)

// Options configures the high-level Cholesky entry point.
type Options struct {
	// Plan tunes the block partition.
	Plan PlanOptions
	// Upper mirrors the factor into the upper triangle, so the result
	// holds U = L^T where the factorization ran.
	Upper bool
	// Clean zeroes the strict non-factor triangle, which otherwise holds
	// leftovers of the symmetric input.
	Clean bool
	// Log receives job progress at debug level. Nil discards.
	Log *slog.Logger
}

// Cholesky plans a block partition for a against the registered devices
// and factors it out of core. On success a holds the factor in the lower
// triangle, optionally mirrored and cleaned per Options.
func Cholesky(reg *device.Registry, a *mat.Dense, opt Options) (*mat.Dense, error) {
	log := opt.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	allocs, err := Plan(a.Rows, reg.Resources(), opt.Plan)
	if err != nil {
		return nil, err
	}
	log.Info("planned out-of-core factorization",
		"n", a.Rows, "blocks", len(allocs), "devices", reg.Len(), "block_size", allocs[0].Size)
	if _, err := parallelPotrf(reg, allocs, a, log); err != nil {
		return nil, err
	}
	if opt.Upper {
		mat.CopyTriang(a, mat.Lower)
		if opt.Clean {
			mat.MulTriang(a, mat.Lower, true, 0)
		}
	} else if opt.Clean {
		mat.MulTriang(a, mat.Upper, true, 0)
	}
	return a, nil
}
