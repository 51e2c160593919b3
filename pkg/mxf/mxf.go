// Package mxf implements the Matrix eXchange File format.
//
// MXF is a single-file, memory-mappable container for dense float64
// matrices. It describes shape and data only and never implies how the
// matrix is used.
package mxf

// MXF global constants must never change.
const (
	// MagicMXF is the file magic for all MXF containers.
	// It is encoded as "MXF\0".
	MagicMXF = "MXF\x00"

	// Current Major Version: Any change indicates a breaking format change.
	CurrentMajor uint16 = 1

	// Current Minor Version: Versions may add new optional sections or fields.
	CurrentMinor uint16 = 0

	// FlagMatrixDataAligned64 marks payloads whose section starts on a
	// 64-byte boundary, so mapped views can be cast to aligned vectors.
	FlagMatrixDataAligned64 uint64 = 1 << 0
)

type SectionType uint32

const (
	SectionMatrixInfo SectionType = 0x0001
	SectionMatrixData SectionType = 0x0002
)

type MXFHeader struct {
	Magic            [4]byte
	Major            uint16
	Minor            uint16
	HeaderSize       uint32
	SectionCount     uint32
	SectionDirOffset uint64
	FileSize         uint64
	Flags            uint64
}

func (h *MXFHeader) Valid() bool {
	if string(h.Magic[:]) != MagicMXF {
		return false
	}
	if h.HeaderSize < mxfHeaderSize {
		return false
	}
	if h.SectionCount == 0 {
		return false
	}
	return true
}

func (h *MXFHeader) Compatible() bool {
	return h.Major == CurrentMajor
}

type MXFSection struct {
	Type    uint32
	Version uint32
	Offset  uint64
	Size    uint64
}

func (s *MXFSection) End() uint64 {
	return s.Offset + s.Size
}
