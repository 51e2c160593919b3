package mxf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/ashlar/pkg/mat"
)

func TestMatrixRoundTrip(t *testing.T) {
	t.Parallel()

	src := mat.NewDense(12, 9)
	mat.FillRand(src, 42)
	view := src.Slice(2, 10, 1, 7) // strided view, Stride > Cols

	path := filepath.Join(t.TempDir(), "matrix.mxf")
	info := MatrixInfo{Triangle: TriangleLower, Creator: "roundtrip test"}
	if err := WriteMatrix(path, view, info); err != nil {
		t.Fatalf("write matrix: %v", err)
	}

	got, gotInfo, err := ReadMatrix(path)
	if err != nil {
		t.Fatalf("read matrix: %v", err)
	}
	if got.Rows != view.Rows || got.Cols != view.Cols {
		t.Fatalf("shape mismatch: got %dx%d want %dx%d", got.Rows, got.Cols, view.Rows, view.Cols)
	}
	for i := range view.Rows {
		for j := range view.Cols {
			if got.At(i, j) != view.At(i, j) {
				t.Fatalf("element (%d,%d) mismatch: got %g want %g", i, j, got.At(i, j), view.At(i, j))
			}
		}
	}
	if gotInfo.Triangle != TriangleLower || gotInfo.Creator != "roundtrip test" {
		t.Fatalf("info not preserved: %+v", gotInfo)
	}
	if gotInfo.DType != DTypeF64 || gotInfo.Order != OrderRowMajor {
		t.Fatalf("payload description mismatch: %+v", gotInfo)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()
	if f.Header.Flags&FlagMatrixDataAligned64 == 0 {
		t.Fatalf("aligned payload flag not set")
	}
	data := f.Section(SectionMatrixData)
	if data == nil {
		t.Fatalf("missing matrix data section")
	}
	if data.Offset%8 != 0 {
		t.Fatalf("section start %d not aligned", data.Offset)
	}
}

func TestOpenReaderAtRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "container.mxf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteSection(SectionMatrixInfo, 1, []byte("matrix-info")); err != nil {
		t.Fatalf("write matrix info: %v", err)
	}
	if err := w.WriteSection(SectionMatrixData, 1, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("write matrix data: %v", err)
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close writer file: %v", err)
	}

	rf, err := os.Open(path)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer func() { _ = rf.Close() }()

	st, err := rf.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	mf, err := OpenReaderAt(rf, st.Size())
	if err != nil {
		t.Fatalf("open readerat: %v", err)
	}
	defer func() {
		if cerr := mf.Close(); cerr != nil {
			t.Fatalf("close mxf file: %v", cerr)
		}
	}()

	if mf.mmapped {
		t.Fatalf("OpenReaderAt should not mmap")
	}
	if mf.Header == nil {
		t.Fatalf("missing header")
	}
	if mf.Header.HeaderSize != mxfHeaderSize {
		t.Fatalf("header size mismatch: got %d want %d", mf.Header.HeaderSize, mxfHeaderSize)
	}

	infoSec := mf.Section(SectionMatrixInfo)
	if infoSec == nil {
		t.Fatalf("missing matrix info section")
	}
	got := mf.SectionData(infoSec)
	if !bytes.Equal(got, []byte("matrix-info")) {
		t.Fatalf("matrix info mismatch: got %q", string(got))
	}
}

func TestHeaderAndSectionEncodingLittleEndian(t *testing.T) {
	t.Parallel()

	h := MXFHeader{
		Magic:            [4]byte{'M', 'X', 'F', 0},
		Major:            0x1122,
		Minor:            0x3344,
		HeaderSize:       mxfHeaderSize,
		SectionCount:     7,
		SectionDirOffset: 0x0102030405060708,
		FileSize:         0x1112131415161718,
		Flags:            0x2122232425262728,
	}
	var hdrRaw [mxfHeaderSize]byte
	if !encodeHeader(hdrRaw[:], h) {
		t.Fatalf("encode header failed")
	}
	if hdrRaw[4] != 0x22 || hdrRaw[5] != 0x11 {
		t.Fatalf("major is not little-endian: %x", hdrRaw[4:6])
	}
	if hdrRaw[16] != 0x08 || hdrRaw[23] != 0x01 {
		t.Fatalf("section dir offset is not little-endian: %x", hdrRaw[16:24])
	}
	decodedH, ok := decodeHeader(hdrRaw[:])
	if !ok {
		t.Fatalf("decode header failed")
	}
	if decodedH != h {
		t.Fatalf("header round-trip mismatch: got %+v want %+v", decodedH, h)
	}

	s := MXFSection{
		Type:    0x11223344,
		Version: 0x55667788,
		Offset:  0x0102030405060708,
		Size:    0x1112131415161718,
	}
	var secRaw [mxfSectionSize]byte
	if !encodeSection(secRaw[:], s) {
		t.Fatalf("encode section failed")
	}
	if secRaw[0] != 0x44 || secRaw[3] != 0x11 {
		t.Fatalf("section type is not little-endian: %x", secRaw[0:4])
	}
	if secRaw[8] != 0x08 || secRaw[15] != 0x01 {
		t.Fatalf("section offset is not little-endian: %x", secRaw[8:16])
	}
	decodedS, ok := decodeSection(secRaw[:])
	if !ok {
		t.Fatalf("decode section failed")
	}
	if decodedS != s {
		t.Fatalf("section round-trip mismatch: got %+v want %+v", decodedS, s)
	}
}

func TestOpenRejectsCorruptFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.mxf")
	a := mat.NewDense(4, 4)
	mat.FillRand(a, 7)
	if err := WriteMatrix(valid, a, MatrixInfo{}); err != nil {
		t.Fatalf("write matrix: %v", err)
	}
	raw, err := os.ReadFile(valid)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	cases := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{
			name:   "truncated header",
			mutate: func(b []byte) []byte { return b[:mxfHeaderSize-1] },
			want:   ErrCorruptFile,
		},
		{
			name: "bad magic",
			mutate: func(b []byte) []byte {
				b[0] = 'Z'
				return b
			},
			want: ErrInvalidMagic,
		},
		{
			name: "unsupported major",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint16(b[4:6], CurrentMajor+1)
				return b
			},
			want: ErrUnsupportedMajor,
		},
		{
			name: "file size mismatch",
			mutate: func(b []byte) []byte {
				return append(b, 0)
			},
			want: ErrCorruptFile,
		},
		{
			name: "section out of bounds",
			mutate: func(b []byte) []byte {
				hdr, _ := decodeHeader(b)
				// Stretch the first directory entry past the file end.
				dir := int(hdr.SectionDirOffset)
				binary.LittleEndian.PutUint64(b[dir+16:dir+24], uint64(len(b)))
				return b
			},
			want: ErrCorruptFile,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".mxf")
			if err := os.WriteFile(path, tc.mutate(bytes.Clone(raw)), 0o644); err != nil {
				t.Fatalf("write corrupt file: %v", err)
			}
			_, err := Open(path)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestReadMatrixShapeMismatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "short.mxf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	info := []byte(`{"rows":8,"cols":8,"dtype":"f64","order":"row"}`)
	if err := w.WriteSection(SectionMatrixInfo, 1, info); err != nil {
		t.Fatalf("write info: %v", err)
	}
	if err := w.WriteSection(SectionMatrixData, 1, make([]byte, 16)); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, _, err := ReadMatrix(path); !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("got %v, want %v", err, ErrCorruptFile)
	}
}

func TestReadMatrixRejectsHugeDeclaredShape(t *testing.T) {
	t.Parallel()

	// Shapes chosen so rows*cols*8 wraps: the first goes negative, the
	// second wraps all the way back to zero and would defeat a plain
	// size comparison.
	shapes := []struct {
		name string
		info string
	}{
		{"wraps negative", `{"rows":1,"cols":1729382256910270464,"dtype":"f64","order":"row"}`},
		{"wraps to zero", `{"rows":2147483648,"cols":2147483648,"dtype":"f64","order":"row"}`},
	}
	for _, tc := range shapes {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "huge.mxf")
			f, err := os.Create(path)
			if err != nil {
				t.Fatalf("create file: %v", err)
			}
			w, err := NewWriter(f)
			if err != nil {
				t.Fatalf("new writer: %v", err)
			}
			if err := w.WriteSection(SectionMatrixInfo, 1, []byte(tc.info)); err != nil {
				t.Fatalf("write info: %v", err)
			}
			if err := w.WriteSection(SectionMatrixData, 1, make([]byte, 16)); err != nil {
				t.Fatalf("write data: %v", err)
			}
			if err := w.Finalise(); err != nil {
				t.Fatalf("finalise: %v", err)
			}
			if err := f.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			if _, _, err := ReadMatrix(path); !errors.Is(err, ErrCorruptFile) {
				t.Fatalf("got %v, want %v", err, ErrCorruptFile)
			}
		})
	}
}

func TestWriterRejectsMisuse(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "misuse.mxf"))
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteSection(SectionMatrixInfo, 1, []byte("x")); err != nil {
		t.Fatalf("write section: %v", err)
	}
	if err := w.WriteSection(SectionMatrixInfo, 1, []byte("y")); err == nil {
		t.Fatalf("duplicate section type accepted")
	}

	sw, err := w.BeginSection(SectionMatrixData, 1)
	if err != nil {
		t.Fatalf("begin section: %v", err)
	}
	if err := w.WriteSection(SectionType(0x7), 1, []byte("z")); err == nil {
		t.Fatalf("interleaved section write accepted")
	}
	if err := sw.End(); err != nil {
		t.Fatalf("end section: %v", err)
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if err := w.WriteSection(SectionType(0x8), 1, nil); err == nil {
		t.Fatalf("write after finalise accepted")
	}
}
