package mxf

import "errors"

var (
	ErrInvalidMagic     = errors.New("invalid MXF magic")
	ErrUnsupportedMajor = errors.New("unsupported MXF major version")
	ErrCorruptFile      = errors.New("corrupt MXF file")
)
