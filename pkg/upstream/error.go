package upstream

import (
	"errors"
	"fmt"
	"net"
)

// Error is any failed upstream call: transport failure, timeout, non-2xx status
// or a body that could not be read or validated.
type Error struct {
	URL string
	// StatusCode is zero when no response was received.
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Timeout reports whether the call gave up waiting for the upstream.
func (e *Error) Timeout() bool {
	var ne net.Error
	return errors.As(e.Cause, &ne) && ne.Timeout()
}

var (
	errStatus      = errors.New("unexpected status")
	errInvalidJSON = errors.New("response body is not valid JSON")
	errTooLarge    = errors.New("response body exceeds size limit")
)
