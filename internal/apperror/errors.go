package apperror

import (
	"errors"
	"strings"
)

// Taxonomy shared by every component. Domain packages wrap these with a
// short code, e.g. fmt.Errorf("%w: reason_required", ErrValidationFailed).
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrValidationFailed     = errors.New("validation_failed")
	ErrNotFound             = errors.New("not_found")
	ErrConflict             = errors.New("conflict")
	ErrTransportUnavailable = errors.New("transport_unavailable")
	ErrRateLimited          = errors.New("rate_limited")
)

// Code returns the domain code appended to a wrapped taxonomy error.
func Code(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	idx := strings.LastIndex(msg, ": ")
	if idx < 0 {
		return msg
	}
	return strings.TrimSpace(msg[idx+2:])
}

// Type returns the taxonomy name for err, or "internal_error".
func Type(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrValidationFailed):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTransportUnavailable):
		return "transport_unavailable"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal_error"
	}
}
