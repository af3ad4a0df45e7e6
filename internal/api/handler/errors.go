package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/reportgate/internal/api/response"
	"github.com/kiranshivaraju/reportgate/internal/billing"
)

// writeBillingError maps a billing sentinel to its HTTP status and error code.
// Downstream failures collapse to a generic 500; their detail is logged by the service.
func writeBillingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrUnauthenticated):
		response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Authentication required", nil)
	case errors.Is(err, billing.ErrInvalidArgument):
		response.Error(w, http.StatusBadRequest, response.CodeInvalidArgument, clientMessage(err), nil)
	case errors.Is(err, billing.ErrPermissionDenied):
		response.Error(w, http.StatusForbidden, response.CodePermissionDenied, "Job belongs to another user", nil)
	case errors.Is(err, billing.ErrNotFound):
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Job not found", nil)
	case errors.Is(err, billing.ErrFailedPrecondition):
		response.Error(w, http.StatusBadRequest, response.CodeFailedPrecondition, "Job is already unlocked", nil)
	default:
		response.Error(w, http.StatusInternalServerError, response.CodeInternal, "An unexpected error occurred", nil)
	}
}

// clientMessage strips the sentinel prefix from a validation error so the
// remaining text can be shown to the caller.
func clientMessage(err error) string {
	return strings.TrimPrefix(err.Error(), billing.ErrInvalidArgument.Error()+": ")
}
