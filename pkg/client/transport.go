package client

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultDialTimeout         = 30 * time.Second
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 16
	defaultIdleConnTimeout     = 90 * time.Second
)

type TransportOption func(*http.Transport)

func WithMaxIdleConns(maxIdleConns int) TransportOption {
	return func(t *http.Transport) {
		t.MaxIdleConns = maxIdleConns
	}
}

func WithMaxIdleConnsPerHost(maxIdleConnsPerHost int) TransportOption {
	return func(t *http.Transport) {
		t.MaxIdleConnsPerHost = maxIdleConnsPerHost
	}
}

// WithMaxConnsPerHost caps concurrent connections to one upstream. Zero means no limit.
func WithMaxConnsPerHost(maxConnsPerHost int) TransportOption {
	return func(t *http.Transport) {
		t.MaxConnsPerHost = maxConnsPerHost
	}
}

func WithIdleConnTimeout(timeout time.Duration) TransportOption {
	return func(t *http.Transport) {
		t.IdleConnTimeout = timeout
	}
}

func WithResponseHeaderTimeout(timeout time.Duration) TransportOption {
	return func(t *http.Transport) {
		t.ResponseHeaderTimeout = timeout
	}
}

func WithDialTimeout(timeout time.Duration) TransportOption {
	return func(t *http.Transport) {
		t.DialContext = (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}
}

func NewTransport(opts ...TransportOption) *http.Transport {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	WithDialTimeout(defaultDialTimeout)(transport)

	for _, opt := range opts {
		opt(transport)
	}
	return transport
}
