// Package ooc implements out-of-core, multi-device blocked Cholesky
// factorization. The matrix lives in host memory; devices hold two column
// slabs each and stream blocks in and out on demand, so matrices far
// larger than any single device's memory can be factored.
package ooc

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/samcharles93/ashlar/pkg/device"
	"github.com/samcharles93/ashlar/pkg/mat"
)

// ParallelPotrf overwrites the lower triangle of a with its Cholesky
// factor L, so that L*L^T equals the symmetric matrix whose lower triangle
// a holds. Block columns are processed in ascending diagonal order; each is
// staged to its owning device, factored and solved there, and written
// back, while the devices owning later columns apply the trailing updates.
//
// On failure the contents of a are undefined. A non-positive-definite
// diagonal block surfaces as a *NumericalError naming the block and
// device; an over-budget workspace as a *device.ExhaustedError.
func ParallelPotrf(reg *device.Registry, allocs []BlockAlloc, a *mat.Dense) (*mat.Dense, error) {
	return parallelPotrf(reg, allocs, a, slog.New(slog.DiscardHandler))
}

func parallelPotrf(reg *device.Registry, allocs []BlockAlloc, a *mat.Dense, log *slog.Logger) (*mat.Dense, error) {
	if a == nil {
		return nil, errors.New("nil matrix")
	}
	n := a.Rows
	if a.Cols != n {
		return nil, fmt.Errorf("matrix must be square, got %dx%d", a.Rows, a.Cols)
	}
	if n == 0 {
		return a, nil
	}
	if a.Stride < n {
		return nil, fmt.Errorf("stride %d < matrix order %d", a.Stride, n)
	}
	if need := (n-1)*a.Stride + n; len(a.Data) < need {
		return nil, fmt.Errorf("matrix data holds %d elements, need %d", len(a.Data), need)
	}
	sorted, err := validateAllocs(n, allocs, reg)
	if err != nil {
		return nil, err
	}

	j := &job{
		reg: reg,
		a:   a,
		n:   n,
		log: log,
		id:  uuid.NewString(),
	}
	if err := j.setup(sorted); err != nil {
		_ = j.teardown()
		return nil, err
	}
	err = j.run(sorted)
	terr := j.teardown()
	if err == nil {
		err = terr
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// job holds the per-run scheduling state.
type job struct {
	reg *device.Registry
	a   *mat.Dense
	n   int
	log *slog.Logger
	id  string

	devs  map[device.ID]*devWork
	order []device.ID
}

// devWork is one device's streams and slabs. colBuf stages the device's
// own block columns (and doubles as the panel source on the steps it
// owns); panelBuf stages foreign panels (and doubles as the update target
// on owned steps).
type devWork struct {
	id     device.ID
	ctx    device.Context
	stream device.Stream

	colBuf   device.Buffer
	panelBuf device.Buffer

	// panelBase is the first staged panel row for the current step, or -1
	// when this device has not yet staged the step's panel.
	panelBase int
}

// setup creates one stream and two workspace slabs per participating
// device. Slabs are sized once for the whole job: a device never stages
// rows above its first owned column, so (n - firstOwned) * maxBlock
// elements bounds both slabs.
func (j *job) setup(allocs []BlockAlloc) error {
	maxBS := 0
	first := make(map[device.ID]int)
	for _, al := range allocs {
		maxBS = max(maxBS, al.Size)
		if _, ok := first[al.Device]; !ok {
			first[al.Device] = al.Start
		}
	}
	j.order = make([]device.ID, 0, len(first))
	for id := range first {
		j.order = append(j.order, id)
	}
	sort.Slice(j.order, func(a, b int) bool { return j.order[a] < j.order[b] })

	j.devs = make(map[device.ID]*devWork, len(j.order))
	for _, id := range j.order {
		ctx, _ := j.reg.Handle(id)
		s, err := ctx.NewStream()
		if err != nil {
			return err
		}
		w := &devWork{id: id, ctx: ctx, stream: s}
		j.devs[id] = w

		slab := (j.n - first[id]) * maxBS
		if w.colBuf, err = ctx.Alloc(slab); err != nil {
			return err
		}
		if w.panelBuf, err = ctx.Alloc(slab); err != nil {
			return err
		}
	}
	return nil
}

func (j *job) run(allocs []BlockAlloc) error {
	n, lda, data := j.n, j.a.Stride, j.a.Data

	for k, al := range allocs {
		owner := j.devs[al.Device]
		bs := al.Size
		rows := n - al.Start
		hostOff := al.Start*lda + al.Start

		// Stage block column k, factor the diagonal block, solve the
		// panel, and write the finished column back.
		if err := owner.ctx.CopyIn(owner.colBuf, bs, data[hostOff:], lda, rows, bs, owner.stream); err != nil {
			return err
		}
		if err := owner.ctx.Potrf(bs, owner.colBuf, bs, owner.stream); err != nil {
			return j.numerical(al, err)
		}
		if rows > bs {
			panel := owner.colBuf.Slice(bs*bs, rows*bs)
			if err := owner.ctx.Trsm(rows-bs, bs, owner.colBuf, bs, panel, bs, owner.stream); err != nil {
				return err
			}
		}
		if err := owner.ctx.CopyOut(data[hostOff:], lda, owner.colBuf, bs, rows, bs, owner.stream); err != nil {
			return err
		}
		j.log.Debug("factored block column",
			"job", j.id, "block", al.ID, "device", int(al.Device), "start", al.Start, "bs", bs)

		if k+1 == len(allocs) {
			break
		}

		// Publish the column once for the devices that need it.
		var ev device.Event
		for _, w := range j.devs {
			w.panelBase = -1
		}
		owner.panelBase = al.Start
		for _, later := range allocs[k+1:] {
			if later.Device != al.Device {
				ev = owner.stream.Record()
				break
			}
		}

		// Trailing updates in ascending block order, each on the device
		// owning the target column.
		for _, tgt := range allocs[k+1:] {
			if err := j.update(j.devs[tgt.Device], owner, al, tgt, ev); err != nil {
				return err
			}
		}
	}

	var firstErr error
	for _, id := range j.order {
		if err := j.devs[id].stream.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// update applies the SYRK/GEMM trailing update of the factored column src
// onto the target column tgt, on tgt's owning device w.
func (j *job) update(w, owner *devWork, src, tgt BlockAlloc, ev device.Event) error {
	n, lda, data := j.n, j.a.Stride, j.a.Data
	bs := src.Size
	tb := tgt.Size
	colRows := n - tgt.Start

	// Locate the panel. The owner reads it straight from its column slab;
	// other devices wait for the handoff event and stage the rows below
	// their first pending column, once per step.
	panel, base := w.colBuf, w.panelBase
	if w != owner {
		if w.panelBase < 0 {
			if err := w.stream.Wait(ev); err != nil {
				return err
			}
			off := tgt.Start*lda + src.Start
			if err := w.ctx.CopyIn(w.panelBuf, bs, data[off:], lda, n-tgt.Start, bs, w.stream); err != nil {
				return err
			}
			w.panelBase = tgt.Start
		}
		panel, base = w.panelBuf, w.panelBase
	}
	pview := func(r0, r1 int) device.Buffer {
		return panel.Slice((r0-base)*bs, (r1-base)*bs)
	}

	// Owners updating their own later columns stage them into the panel
	// slab, since the column slab holds the factored panel.
	tbuf := w.colBuf
	if w == owner {
		tbuf = w.panelBuf
	}

	hostOff := tgt.Start*lda + tgt.Start
	if err := w.ctx.CopyIn(tbuf, tb, data[hostOff:], lda, colRows, tb, w.stream); err != nil {
		return err
	}
	if err := w.ctx.Syrk(tb, bs, pview(tgt.Start, tgt.End), bs, tbuf, tb, w.stream); err != nil {
		return err
	}
	if colRows > tb {
		below := tbuf.Slice(tb*tb, colRows*tb)
		if err := w.ctx.Gemm(colRows-tb, tb, bs,
			pview(tgt.End, n), bs, pview(tgt.Start, tgt.End), bs, below, tb, w.stream); err != nil {
			return err
		}
	}
	return w.ctx.CopyOut(data[hostOff:], lda, tbuf, tb, colRows, tb, w.stream)
}

func (j *job) numerical(al BlockAlloc, err error) error {
	var npd *device.NotPDError
	if errors.As(err, &npd) {
		return &NumericalError{Block: al.ID, Device: al.Device, Minor: npd.Minor}
	}
	return err
}

// teardown drains the streams, frees the slabs, and closes the streams.
// Drain errors were already surfaced by run; release errors are joined.
func (j *job) teardown() error {
	var errs []error
	for _, id := range j.order {
		w := j.devs[id]
		if w == nil || w.stream == nil {
			continue
		}
		_ = w.stream.Sync()
		if w.colBuf != nil {
			if err := w.ctx.Free(w.colBuf); err != nil {
				errs = append(errs, err)
			}
		}
		if w.panelBuf != nil {
			if err := w.ctx.Free(w.panelBuf); err != nil {
				errs = append(errs, err)
			}
		}
		if err := w.stream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
