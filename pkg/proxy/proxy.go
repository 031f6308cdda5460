// Package proxy is the request pipeline of the gateway: route resolution,
// cache lookup, admission and the upstream call.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/sync/singleflight"

	"github.com/ashpect/cachegate/pkg/cache"
	"github.com/ashpect/cachegate/pkg/cachekey"
	"github.com/ashpect/cachegate/pkg/ratelimit"
	"github.com/ashpect/cachegate/pkg/route"
	"github.com/ashpect/cachegate/pkg/upstream"
)

// Fetcher performs upstream calls. *upstream.Forwarder is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

type Gateway struct {
	routes    *route.Table
	forwarder Fetcher
	store     cache.Store
	limiter   ratelimit.Limiter
	logger    zerolog.Logger
	clock     clockwork.Clock
	coalesce  bool
	group     singleflight.Group
}

type GatewayOption func(*Gateway)

// WithCache enables caching for cacheable routes. Without a store every request goes upstream.
func WithCache(store cache.Store) GatewayOption {
	return func(g *Gateway) {
		g.store = store
	}
}

func WithLimiter(l ratelimit.Limiter) GatewayOption {
	return func(g *Gateway) {
		g.limiter = l
	}
}

func WithLogger(l zerolog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = l
	}
}

func WithClock(c clockwork.Clock) GatewayOption {
	return func(g *Gateway) {
		g.clock = c
	}
}

// WithCoalescing makes concurrent misses for the same key share one upstream call.
func WithCoalescing(enabled bool) GatewayOption {
	return func(g *Gateway) {
		g.coalesce = enabled
	}
}

// NewGateway registers the rate limits of routes with the limiter. When no limiter
// is given an in-memory fixed window is used.
func NewGateway(routes *route.Table, forwarder Fetcher, opts ...GatewayOption) (*Gateway, error) {
	if routes == nil || forwarder == nil {
		return nil, errors.New("proxy: routes and forwarder are required")
	}
	g := &Gateway{
		routes:    routes,
		forwarder: forwarder,
		logger:    zerolog.Nop(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.limiter == nil {
		g.limiter = ratelimit.NewFixedWindow(g.clock)
	}

	for _, def := range routes.Definitions() {
		if !def.RateLimited {
			continue
		}
		if err := g.limiter.Register(def.Name, ratelimit.Rule{Limit: def.Limit, Window: def.Window}); err != nil {
			return nil, fmt.Errorf("proxy: route %s: %w", def.Name, err)
		}
	}
	return g, nil
}

// Purge drops every cached entry.
func (g *Gateway) Purge() error {
	if g.store == nil {
		return nil
	}
	return g.store.Purge()
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := g.requestLogger(r)

	def, m, ok := g.routes.Resolve(r.URL.Path)
	if !ok {
		g.fail(w, logger, fmt.Errorf("%w: %s", ErrRouteNotFound, r.URL.Path))
		return
	}
	logger = logger.With().Str("route", def.Name).Logger()

	if !def.Allows(r.Method) {
		w.Header().Set("Allow", strings.Join(def.Methods, ", "))
		g.fail(w, logger, fmt.Errorf("%w: %s", ErrMethodNotAllowed, r.Method))
		return
	}

	target, err := def.Target(m, r.URL.Query())
	if err != nil {
		g.fail(w, logger, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	key := cachekey.Key(target)
	read := r.Method == http.MethodGet || r.Method == http.MethodHead
	cacheable := def.Cacheable && read && g.store != nil

	if cacheable {
		if entry, ok := g.lookup(key, logger); ok {
			logger.Debug().Str("key", key).Msg("cache hit")
			g.serveCachedResponse(w, entry, logger)
			return
		}
		logger.Debug().Str("key", key).Msg("cache miss")
	}

	if def.RateLimited {
		d, err := g.limiter.Allow(r.Context(), def.Name)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("rate limiter unavailable, admitting request")
		case !d.Allowed:
			setRetryAfter(w.Header(), d.RetryAfter)
			g.fail(w, logger, ErrRateLimited)
			return
		}
	}

	resp, stored, err := g.forward(r, def, target, key, cacheable, logger)
	if err != nil {
		g.fail(w, logger, err)
		return
	}

	status := http.StatusOK
	if !read {
		status = resp.StatusCode
	}
	if cacheable {
		w.Header().Set("Cache-Status", cacheStatusMiss(stored))
	}
	writeBody(w, status, resp.ContentType, resp.Body, logger)
}

type result struct {
	resp   *upstream.Response
	stored bool
}

// forward calls the upstream, writing a successful cacheable response through to the store.
// The call outlives a disconnecting client; only the forwarder timeout bounds it.
func (g *Gateway) forward(r *http.Request, def *route.Definition, target *url.URL, key string, cacheable bool, logger zerolog.Logger) (*upstream.Response, bool, error) {
	req := upstream.Request{
		Method:  r.Method,
		URL:     target,
		Kind:    def.Kind,
		Inbound: r,
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		// HEAD is answered from a GET so the body can fill the cache
		req.Method = http.MethodGet
	default:
		req.Header = r.Header
		req.Body = r.Body
	}
	ctx := context.WithoutCancel(r.Context())

	load := func() (result, error) {
		resp, err := g.forwarder.Fetch(ctx, req)
		if err != nil {
			return result{}, err
		}
		res := result{resp: resp}
		if cacheable {
			res.stored = g.storeResponse(key, def, resp, logger)
		}
		return res, nil
	}

	if !cacheable || !g.coalesce {
		res, err := load()
		return res.resp, res.stored, err
	}

	v, err, shared := g.group.Do(key, func() (any, error) {
		return load()
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		logger.Trace().Str("key", key).Msg("shared upstream call")
	}
	res := v.(result)
	return res.resp, res.stored, nil
}

func (g *Gateway) fail(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)

	var ev *zerolog.Event
	switch {
	case status >= http.StatusInternalServerError:
		ev = logger.Error()
		var ue *upstream.Error
		if errors.As(err, &ue) {
			ev = ev.Int("upstream_status", ue.StatusCode).Bool("timeout", ue.Timeout())
		}
	case status == http.StatusTooManyRequests:
		ev = logger.Info()
	default:
		ev = logger.Debug()
	}
	ev.Err(err).Int("status", status).Msg("request failed")

	http.Error(w, http.StatusText(status), status)
}

// requestLogger prefers the logger attached by the server middleware.
func (g *Gateway) requestLogger(r *http.Request) zerolog.Logger {
	if l := hlog.FromRequest(r); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return g.logger
}
