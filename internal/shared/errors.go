package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a missing, invalid or expired token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the caller's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrServiceUnavailable indicates an upstream service could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrUpstream indicates an upstream service answered with an error.
	ErrUpstream = errors.New("upstream error")
	// ErrInvalidInput indicates a request that failed domain validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates the record clashes with an existing one.
	ErrConflict = errors.New("conflict")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps internal errors onto messages that can be shown to
// dashboard users without leaking upstream detail.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrUnauthenticated):
		return "Your session has expired, please sign in again"
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action"
	case errors.Is(err, ErrServiceUnavailable):
		return "The service is temporarily unavailable, please retry"
	case errors.Is(err, ErrUpstream):
		return "An upstream service reported an error, please retry"
	case errors.Is(err, ErrInvalidInput):
		return "The request could not be processed, check the submitted values"
	case errors.Is(err, ErrConflict):
		return "A record with these details already exists"
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "The form has expired, please reload the page and retry"
	default:
		return "Something went wrong, please retry"
	}
}
