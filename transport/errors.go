package transport

import (
	"fmt"
	"net/http"
)

// Sentinel error kinds a StatusError matches via errors.Is. Callers branch
// on the kind, not on the raw status code.
var (
	ErrNotFound       = fmt.Errorf("resource not found")
	ErrThrottled      = fmt.Errorf("request rate limited")
	ErrAuthentication = fmt.Errorf("authentication failed")
	ErrEntitlement    = fmt.Errorf("payment required")
	ErrServer         = fmt.Errorf("server error")
)

// StatusError is a non-2xx API response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api responded with %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("api responded with %d", e.Code)
}

// Is maps status codes onto the sentinel kinds, so
// errors.Is(err, ErrNotFound) works without exposing raw codes upstream.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrThrottled:
		return e.Code == http.StatusTooManyRequests
	case ErrAuthentication:
		return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
	case ErrEntitlement:
		return e.Code == http.StatusPaymentRequired
	case ErrServer:
		return e.Code >= 500
	}
	return false
}
