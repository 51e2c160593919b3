package device

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned for operations on a closed context or stream.
	ErrClosed = errors.New("device context closed")

	// ErrForeignHandle is returned when a buffer, stream, or event is
	// presented to a context or stream that did not create it.
	ErrForeignHandle = errors.New("handle does not belong to this device")
)

// ConfigError reports an invalid resource record at registry construction,
// before any compute is issued.
type ConfigError struct {
	Index  int
	ID     ID
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("device resource %d (id %d): %s", e.Index, e.ID, e.Reason)
}

// ExhaustedError reports an allocation that exceeded a device's memory
// budget.
type ExhaustedError struct {
	Device    ID
	Requested uint64
	Free      uint64
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("device %d: insufficient memory: need %d bytes, available %d",
		e.Device, e.Requested, e.Free)
}

// NotPDError reports a Cholesky factorization that hit a non-positive-
// definite diagonal block. Minor is the order of the offending leading
// minor when the backend reports it, zero otherwise.
type NotPDError struct {
	Minor int
}

func (e *NotPDError) Error() string {
	if e.Minor > 0 {
		return fmt.Sprintf("matrix is not positive definite: leading minor of order %d", e.Minor)
	}
	return "matrix is not positive definite"
}
