// Package route maps inbound request paths to upstream targets.
package route

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/ashpect/cachegate/pkg/cache"
	"github.com/ashpect/cachegate/pkg/cachekey"
)

const DefaultTTL = 60 * time.Second

var (
	// ErrMissingURL is returned when a URL-parameter route is called without the parameter.
	ErrMissingURL = errors.New("route: missing upstream url parameter")
	// ErrHostNotAllowed is returned when a URL parameter points outside the route's hosts.
	ErrHostNotAllowed = errors.New("route: upstream host not allowed")
	// ErrPathEscapes is returned when dot segments take the upstream path outside the route.
	ErrPathEscapes = errors.New("route: path escapes route prefix")
)

// Definition is a static route. It is built at startup and never mutated.
type Definition struct {
	Name     string
	Pattern  *Pattern
	Upstream *url.URL
	// Rewrite builds the upstream path; nil forwards the inbound path unchanged.
	Rewrite *Template
	// URLParam names a query parameter carrying the full upstream URL.
	URLParam string
	// AllowedHosts extends the hosts a URLParam may point at beyond Upstream's.
	AllowedHosts []string
	Query        cachekey.Builder
	Kind         cache.Kind
	Methods      []string

	Cacheable bool
	TTL       time.Duration

	RateLimited bool
	Limit       int
	Window      time.Duration
}

// Validate checks the definition and fills defaults.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("route: name is required")
	}
	if d.Pattern == nil {
		return fmt.Errorf("route %s: pattern is required", d.Name)
	}
	if d.Upstream == nil || d.Upstream.Scheme == "" || d.Upstream.Host == "" {
		return fmt.Errorf("route %s: upstream must be an absolute URL", d.Name)
	}
	if d.Rewrite != nil {
		if d.URLParam != "" {
			return fmt.Errorf("route %s: rewrite and urlParam are mutually exclusive", d.Name)
		}
		if err := d.Rewrite.check(d.Pattern); err != nil {
			return fmt.Errorf("route %s: %w", d.Name, err)
		}
	}
	switch d.Kind {
	case "":
		d.Kind = cache.KindJSON
	case cache.KindJSON, cache.KindBinary:
	default:
		return fmt.Errorf("route %s: unknown kind %q", d.Name, d.Kind)
	}
	if len(d.Methods) == 0 {
		d.Methods = []string{http.MethodGet}
	}
	for i, m := range d.Methods {
		d.Methods[i] = strings.ToUpper(m)
	}
	// a GET route answers HEAD too
	if slices.Contains(d.Methods, http.MethodGet) && !slices.Contains(d.Methods, http.MethodHead) {
		d.Methods = slices.Insert(d.Methods, slices.Index(d.Methods, http.MethodGet)+1, http.MethodHead)
	}
	if d.Cacheable && d.TTL <= 0 {
		d.TTL = DefaultTTL
	}
	if d.RateLimited && (d.Limit <= 0 || d.Window <= 0) {
		return fmt.Errorf("route %s: rate limited routes need limit > 0 and window > 0", d.Name)
	}
	return nil
}

// Allows reports whether the route accepts method.
func (d *Definition) Allows(method string) bool {
	return slices.Contains(d.Methods, method)
}

// Target resolves the upstream URL for a matched request.
func (d *Definition) Target(m Match, query url.Values) (*url.URL, error) {
	if d.URLParam != "" {
		return d.paramTarget(query)
	}

	var upstreamPath, prefix string
	if d.Rewrite != nil {
		upstreamPath, prefix = d.Rewrite.Expand(m), d.Rewrite.Prefix()
	} else {
		upstreamPath, prefix = cleanPath(m.path), d.Pattern.Prefix()
	}
	if !within(upstreamPath, prefix) {
		return nil, fmt.Errorf("%w: %s", ErrPathEscapes, upstreamPath)
	}

	target := *d.Upstream
	target.Path = singleJoiningSlash(d.Upstream.Path, upstreamPath)
	target.RawPath = ""
	target.RawQuery = d.Query.Query(query)
	target.Fragment = ""
	return &target, nil
}

func (d *Definition) paramTarget(query url.Values) (*url.URL, error) {
	raw := query.Get(d.URLParam)
	if raw == "" {
		return nil, ErrMissingURL
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingURL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrHostNotAllowed, target.Scheme)
	}
	if !d.hostAllowed(target.Host) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, target.Host)
	}

	// the url's own query plus any declared request parameters
	merged := target.Query()
	for _, p := range d.Query.Params {
		if vs, ok := query[p.Name]; ok && p.Name != d.URLParam {
			merged[p.Name] = vs
		}
	}
	builder := cachekey.Builder{Params: d.Query.Params, ForwardAll: true}
	target.RawQuery = builder.Query(merged)
	target.Fragment = ""
	return target, nil
}

func (d *Definition) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	if host == strings.ToLower(d.Upstream.Host) {
		return true
	}
	for _, h := range d.AllowedHosts {
		if host == strings.ToLower(h) {
			return true
		}
	}
	return false
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

// Table resolves paths against definitions in registration order.
type Table struct {
	defs []*Definition
}

// NewTable validates the definitions. Order matters: the first matching route wins,
// so specific routes must come before catch-alls.
func NewTable(defs ...*Definition) (*Table, error) {
	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if names[d.Name] {
			return nil, fmt.Errorf("route %s: duplicate name", d.Name)
		}
		names[d.Name] = true
	}
	return &Table{defs: defs}, nil
}

// Resolve returns the first definition whose pattern matches reqPath.
func (t *Table) Resolve(reqPath string) (*Definition, Match, bool) {
	for _, d := range t.defs {
		if m, ok := d.Pattern.Match(reqPath); ok {
			return d, m, true
		}
	}
	return nil, Match{}, false
}

// Definitions returns the routes in resolution order.
func (t *Table) Definitions() []*Definition {
	return slices.Clone(t.defs)
}
