package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

// RespondError maps domain errors to RFC7807 problem responses. Unknown
// errors become a 500 with a generic detail; the concrete error is logged,
// never leaked to the client.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		ProblemWith(w, http.StatusBadRequest, "Validation Failed",
			"one or more fields failed validation", map[string]any{"fields": fields})
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Authentication Required", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "CSRF Verification Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrServiceUnavailable):
		w.Header().Set("Retry-After", "2")
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrUpstream):
		Problem(w, http.StatusBadGateway, "Upstream Error", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidInput):
		Problem(w, http.StatusBadRequest, "Invalid Input", shared.UserSafeMessage(err))
	default:
		slog.Error("unhandled error", "path", r.URL.Path, "method", r.Method, "error", err)
		Problem(w, http.StatusInternalServerError, "Internal Server Error",
			"an unexpected error occurred")
	}
}
