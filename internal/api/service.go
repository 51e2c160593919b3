package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samcharles93/ashlar/pkg/backend"
	"github.com/samcharles93/ashlar/pkg/device"
	"github.com/samcharles93/ashlar/pkg/mat"
	"github.com/samcharles93/ashlar/pkg/ooc"
)

// FactorizationService runs out-of-core factorizations against a backend
// pool. Jobs run one at a time: concurrent factorizations would contend
// for the same per-device memory budget mid-flight.
type FactorizationService struct {
	pool *backend.Pool
	reg  *device.Registry
	log  *slog.Logger

	mu sync.Mutex
}

func NewFactorizationService(pool *backend.Pool, log *slog.Logger) (*FactorizationService, error) {
	reg, err := device.NewRegistry(pool.Resources())
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FactorizationService{pool: pool, reg: reg, log: log}, nil
}

// FactorizeParams selects the output form of a factorization.
type FactorizeParams struct {
	Upper bool
	Clean bool
}

// FactorizeResult reports the partition a factorization ran with. The
// factor lives in the input matrix, which is overwritten.
type FactorizeResult struct {
	Factor    *mat.Dense
	Blocks    int
	BlockSize int
}

// Backend returns the pool's negotiated backend name.
func (s *FactorizationService) Backend() string { return s.pool.Name() }

// Devices lists the pool members.
func (s *FactorizationService) Devices() []DeviceInfo {
	resources := s.pool.Resources()
	out := make([]DeviceInfo, 0, len(resources))
	for _, r := range resources {
		out = append(out, DeviceInfo{
			ID:         int(r.ID),
			Backend:    s.pool.Name(),
			FreeMemory: r.FreeMemory,
		})
	}
	return out
}

// Factorize overwrites a with its Cholesky factor.
func (s *FactorizationService) Factorize(ctx context.Context, a *mat.Dense, params FactorizeParams) (FactorizeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return FactorizeResult{}, err
	}
	allocs, err := ooc.Plan(a.Rows, s.reg.Resources(), ooc.PlanOptions{})
	if err != nil {
		return FactorizeResult{}, err
	}
	if _, err := ooc.Cholesky(s.reg, a, ooc.Options{
		Upper: params.Upper,
		Clean: params.Clean,
		Log:   s.log,
	}); err != nil {
		return FactorizeResult{}, err
	}
	return FactorizeResult{Factor: a, Blocks: len(allocs), BlockSize: allocs[0].Size}, nil
}

// Close releases the pool.
func (s *FactorizationService) Close() error {
	return s.pool.Close()
}
