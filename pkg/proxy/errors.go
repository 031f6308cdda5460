package proxy

import (
	"errors"
	"net/http"

	"github.com/ashpect/cachegate/pkg/route"
	"github.com/ashpect/cachegate/pkg/upstream"
)

var (
	ErrRouteNotFound    = errors.New("no route matches path")
	ErrMethodNotAllowed = errors.New("method not allowed on route")
	ErrBadRequest       = errors.New("bad request")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// statusFor maps a request failure to the status the client sees.
func statusFor(err error) int {
	var ue *upstream.Error
	switch {
	case errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, route.ErrMissingURL),
		errors.Is(err, route.ErrHostNotAllowed),
		errors.Is(err, route.ErrPathEscapes):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &ue):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
