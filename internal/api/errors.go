package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/ashlar/pkg/device"
	"github.com/samcharles93/ashlar/pkg/ooc"
)

// factorizationError maps a failed factorization onto an HTTP status and
// error payload. Numerical failures are the client's matrix, exhaustion
// and infeasible plans are the pool's capacity, everything else is ours.
func factorizationError(err error) (int, ResponseError) {
	var numerical *ooc.NumericalError
	if errors.As(err, &numerical) {
		return http.StatusUnprocessableEntity, ResponseError{
			Message: numerical.Error(),
			Type:    "numerical_error",
			Code:    "not_positive_definite",
		}
	}
	var exhausted *device.ExhaustedError
	if errors.As(err, &exhausted) {
		return http.StatusInsufficientStorage, ResponseError{
			Message: exhausted.Error(),
			Type:    "resource_error",
			Code:    "device_memory_exhausted",
		}
	}
	var plan *ooc.PlanError
	if errors.As(err, &plan) {
		return http.StatusInsufficientStorage, ResponseError{
			Message: plan.Error(),
			Type:    "resource_error",
			Code:    "matrix_too_large",
		}
	}
	var alloc *ooc.AllocError
	if errors.As(err, &alloc) {
		return http.StatusBadRequest, ResponseError{
			Message: alloc.Error(),
			Type:    "invalid_request_error",
		}
	}
	return http.StatusInternalServerError, ResponseError{
		Message: err.Error(),
		Type:    "server_error",
	}
}
