package client

import (
	"net/http"
	"time"
)

const defaultClientTimeout = 120 * time.Second

type ClientOption func(*http.Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *http.Client) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

func WithTransport(transport *http.Transport) ClientOption {
	return func(c *http.Client) {
		c.Transport = transport
	}
}

// WithoutRedirects hands 3xx responses back to the caller instead of following them.
func WithoutRedirects() ClientOption {
	return func(c *http.Client) {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
}

func NewClient(opts ...ClientOption) *http.Client {
	client := &http.Client{
		Timeout:   defaultClientTimeout,
		Transport: NewTransport(),
	}

	for _, opt := range opts {
		opt(client)
	}
	return client
}
