package mxf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	json "github.com/goccy/go-json"

	"github.com/samcharles93/ashlar/pkg/mat"
)

const (
	DTypeF64      = "f64"
	OrderRowMajor = "row"

	TriangleFull  = "full"
	TriangleLower = "lower"
	TriangleUpper = "upper"
)

// payloadChunk is the number of elements encoded per write when streaming
// matrix data.
const payloadChunk = 8192

// MatrixInfo describes the payload of an MXF file. It is stored as JSON in
// the MatrixInfo section, so minor versions can add fields without
// breaking older readers.
type MatrixInfo struct {
	Rows     int    `json:"rows"`
	Cols     int    `json:"cols"`
	DType    string `json:"dtype"`
	Order    string `json:"order"`
	Triangle string `json:"triangle,omitempty"`
	Creator  string `json:"creator,omitempty"`
}

func (mi *MatrixInfo) validate() error {
	if mi.Rows <= 0 || mi.Cols <= 0 {
		return fmt.Errorf("mxf: invalid shape %dx%d", mi.Rows, mi.Cols)
	}
	if mi.DType != DTypeF64 {
		return fmt.Errorf("mxf: unsupported dtype %q", mi.DType)
	}
	if mi.Order != OrderRowMajor {
		return fmt.Errorf("mxf: unsupported element order %q", mi.Order)
	}
	switch mi.Triangle {
	case "", TriangleFull, TriangleLower, TriangleUpper:
	default:
		return fmt.Errorf("mxf: unknown triangle %q", mi.Triangle)
	}
	return nil
}

// WriteMatrix stores a in an MXF container at path. The info's shape fields
// are filled from the matrix; Triangle and Creator pass through as given.
func WriteMatrix(path string, a *mat.Dense, info MatrixInfo) (err error) {
	if a == nil || a.Rows == 0 || a.Cols == 0 {
		return errors.New("mxf: empty matrix")
	}
	info.Rows = a.Rows
	info.Cols = a.Cols
	info.DType = DTypeF64
	info.Order = OrderRowMajor
	if err := info.validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()

	w, err := NewWriter(f)
	if err != nil {
		return err
	}

	meta, err := json.Marshal(&info)
	if err != nil {
		return err
	}
	if err := w.WriteSection(SectionMatrixInfo, 1, meta); err != nil {
		return err
	}
	if err := w.AddFlags(FlagMatrixDataAligned64); err != nil {
		return err
	}

	sw, err := w.BeginSection(SectionMatrixData, 1)
	if err != nil {
		return err
	}
	if err := sw.Align(64); err != nil {
		return err
	}
	if err := writePayload(sw, a); err != nil {
		return err
	}
	if err := sw.End(); err != nil {
		return err
	}

	return w.Finalise()
}

// writePayload streams the matrix elements row by row as little-endian
// float64, so strided views serialize without compaction.
func writePayload(sw *SectionWriter, a *mat.Dense) error {
	buf := make([]byte, payloadChunk*8)
	fill := 0
	flush := func() error {
		if fill == 0 {
			return nil
		}
		_, err := sw.Write(buf[:fill])
		fill = 0
		return err
	}
	for i := range a.Rows {
		for _, v := range a.Row(i) {
			binary.LittleEndian.PutUint64(buf[fill:], math.Float64bits(v))
			fill += 8
			if fill == len(buf) {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// ReadMatrix loads the matrix stored at path. The payload is copied out of
// the mapping, so the result stays valid after the file is closed.
func ReadMatrix(path string) (*mat.Dense, MatrixInfo, error) {
	var info MatrixInfo

	f, err := Open(path)
	if err != nil {
		return nil, info, err
	}
	defer func() { _ = f.Close() }()

	infoSec := f.Section(SectionMatrixInfo)
	if infoSec == nil {
		return nil, info, fmt.Errorf("%w: missing matrix info section", ErrCorruptFile)
	}
	if err := json.Unmarshal(f.SectionData(infoSec), &info); err != nil {
		return nil, info, fmt.Errorf("%w: matrix info: %v", ErrCorruptFile, err)
	}
	if err := info.validate(); err != nil {
		return nil, info, err
	}

	dataSec := f.Section(SectionMatrixData)
	if dataSec == nil {
		return nil, info, fmt.Errorf("%w: missing matrix data section", ErrCorruptFile)
	}
	raw := f.SectionData(dataSec)

	// Reject shapes whose byte size would overflow before computing it.
	if info.Cols > math.MaxInt/8/info.Rows {
		return nil, info, fmt.Errorf("%w: declared shape %dx%d exceeds addressable payload", ErrCorruptFile, info.Rows, info.Cols)
	}

	// The payload may start with alignment padding; elements are at the
	// tail of the section.
	want := info.Rows * info.Cols * 8
	if len(raw) < want {
		return nil, info, fmt.Errorf("%w: matrix data holds %d bytes, shape needs %d", ErrCorruptFile, len(raw), want)
	}
	raw = raw[len(raw)-want:]

	a := mat.NewDense(info.Rows, info.Cols)
	for i := range a.Data {
		a.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return a, info, nil
}
