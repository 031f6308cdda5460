// Package upstream performs the outbound calls of the gateway and classifies their failures.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/ashpect/cachegate/pkg/cache"
	"github.com/ashpect/cachegate/pkg/client"
	"github.com/ashpect/cachegate/pkg/utils"
)

const (
	DefaultUserAgent = "cachegate/1.0"
	jsonContentType  = "application/json"
	binaryFallback   = "application/octet-stream"
)

// Request describes one upstream call.
type Request struct {
	Method string
	URL    *url.URL
	Kind   cache.Kind
	// Header holds client headers for passthrough methods. Ignored for GET.
	Header http.Header
	Body   io.Reader
	// Inbound is the client request the call is made for, if any.
	Inbound *http.Request
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type Forwarder struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       zerolog.Logger
}

type Option func(*Forwarder)

func WithClient(c *http.Client) Option {
	return func(f *Forwarder) {
		f.client = c
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Forwarder) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodyBytes rejects responses larger than n bytes. Zero means unbounded.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Forwarder) {
		f.maxBodyBytes = n
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = l
	}
}

func NewForwarder(opts ...Option) *Forwarder {
	f := &Forwarder{
		userAgent: DefaultUserAgent,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = client.NewClient()
	}
	return f
}

// Fetch performs the call and reads the whole body. Failures are never retried
// and are always returned as *Error.
func (f *Forwarder) Fetch(ctx context.Context, req Request) (*Response, error) {
	target := req.URL.String()
	fail := func(status int, cause error) (*Response, error) {
		return nil, &Error{URL: target, StatusCode: status, Cause: cause}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if method != http.MethodGet && method != http.MethodHead {
		body = req.Body
	}

	out, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fail(0, err)
	}
	if method != http.MethodGet {
		out.Header = passthroughHeaders(req.Header)
	}
	out.Header.Set("User-Agent", f.userAgent)
	if req.Kind == cache.KindJSON {
		out.Header.Set("Accept", jsonContentType)
	}
	setForwardedHeaders(out.Header, req.Inbound)

	utils.LogRequest(f.logger, out, "upstream request", req.URL)

	start := time.Now()
	resp, err := f.client.Do(out)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	f.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("upstream responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fail(resp.StatusCode, errStatus)
	}

	payload, err := f.readBody(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, err)
	}

	result := &Response{StatusCode: resp.StatusCode, Body: payload}
	switch req.Kind {
	case cache.KindBinary:
		result.ContentType = resp.Header.Get("Content-Type")
		if result.ContentType == "" {
			result.ContentType = binaryFallback
		}
	default:
		if method != http.MethodGet && len(payload) == 0 {
			break
		}
		if !json.Valid(payload) {
			return fail(resp.StatusCode, errInvalidJSON)
		}
		result.ContentType = jsonContentType
	}
	return result, nil
}

func (f *Forwarder) readBody(r io.Reader) ([]byte, error) {
	if f.maxBodyBytes <= 0 {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return b, nil
	}
	b, err := io.ReadAll(io.LimitReader(r, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > f.maxBodyBytes {
		return nil, errTooLarge
	}
	return b, nil
}
