// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/reseller/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807 with a success flag.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrPermissionDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrProcessing):
		Problem(w, http.StatusInternalServerError, "Processing Error", "the request could not be processed, please retry")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "unexpected error")
	}
}
