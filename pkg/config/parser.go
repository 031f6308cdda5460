// Package config loads the gateway configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ashpect/cachegate/pkg/cache"
	"github.com/ashpect/cachegate/pkg/cachekey"
	"github.com/ashpect/cachegate/pkg/ratelimit"
	"github.com/ashpect/cachegate/pkg/route"
)

const DefaultPath = "config.toml"

func defaultSystemCfg() *SystemCfg {
	return &SystemCfg{
		ListenAddr: ":4000",
		Log:        logCfg{Format: "console"},
		Proxy: proxyCfg{
			UserAgent:             "cachegate/1.0",
			Timeout:               120 * time.Second,
			MaxConnsPerHost:       64,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
		CacheCfg: cacheCfg{
			Enabled:         true,
			Provider:        cache.ProviderMemory,
			CacheCapacity:   4096,
			CleanupInterval: 30 * time.Second,
		},
		RateLimit: rateLimitCfg{Backend: ratelimit.BackendMemory},
		Server: serverCfg{
			AllowedOrigins:    []string{"https://manga-website1.netlify.app", "http://localhost:3000"},
			CompressLevel:     5,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Upstreams: map[string]string{
			"api":     "https://api.mangadex.org",
			"uploads": "https://uploads.mangadex.org",
		},
		Routes: defaultRoutes(),
	}
}

func defaultRoutes() []RouteCfg {
	return []RouteCfg{
		{
			Name: "api", Pattern: "/api/*", Upstream: "api", Rewrite: "/*",
			ForwardQuery: true, Params: []ParamCfg{{Name: "offset", Default: "0"}},
			Kind: "json", Methods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			Cache: true, TTL: 2 * time.Minute,
			Limit: 5, Window: time.Second,
		},
		{
			Name: "search", Pattern: "/search*", Upstream: "api", Rewrite: "/manga*",
			ForwardQuery: true, Kind: "json",
		},
		{
			Name: "images", Pattern: "/images/:id/:file", Upstream: "uploads", Rewrite: "/covers/:id/:file",
			Kind: "binary", Cache: true, TTL: 60 * time.Second,
		},
		{
			Name: "chapter", Pattern: "/chapter/:hash/:img", Upstream: "uploads", Rewrite: "/data/:hash/:img",
			Kind: "binary", Cache: true, TTL: 60 * time.Second,
		},
		{
			Name: "image", Pattern: "/image", Upstream: "uploads", URLParam: "url",
			Kind: "binary", Cache: true, TTL: 60 * time.Second,
		},
		{
			Name: "api-url", Pattern: "/api", Upstream: "api", URLParam: "url",
			Kind: "json", Cache: true, TTL: 60 * time.Second,
		},
		{
			Name: "manga", Pattern: "/manga", Upstream: "api", URLParam: "url",
			Params: []ParamCfg{{Name: "title"}},
			Kind:   "json", Cache: true, TTL: 60 * time.Second,
		},
		{
			Name: "mangas", Pattern: "/mangas", Upstream: "api", URLParam: "url",
			Params: []ParamCfg{
				{Name: "includedTags"}, {Name: "excludedTags"}, {Name: "order"},
				{Name: "limit"}, {Name: "offset", Default: "0"},
			},
			Kind: "json", Cache: true, TTL: 60 * time.Second,
		},
		{
			Name: "chapters", Pattern: "/chapters", Upstream: "api", URLParam: "url",
			Params: []ParamCfg{{Name: "translatedLanguage"}},
			Kind:   "json", Cache: true, TTL: 60 * time.Second,
		},
	}
}

// Load reads path over the defaults. A missing file at DefaultPath is not an error.
// PORT, when set, overrides the listen port.
func Load(path string) (*SystemCfg, error) {
	config := defaultSystemCfg()
	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		// routes in the file replace the defaults rather than merging by index
		var probe struct {
			Routes []RouteCfg `toml:"routes"`
		}
		if _, err := toml.DecodeFile(path, &probe); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if len(probe.Routes) > 0 {
			config.Routes = nil
		}
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) || path != DefaultPath {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if port := os.Getenv("PORT"); port != "" {
		host, _, err := net.SplitHostPort(config.ListenAddr)
		if err != nil {
			host = ""
		}
		config.ListenAddr = net.JoinHostPort(host, port)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks settings that do not depend on route compilation.
func (c *SystemCfg) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listenaddr is required")
	}
	if c.Proxy.Timeout <= 0 {
		return errors.New("config: proxy.timeout must be positive")
	}
	if c.CacheCfg.Enabled && c.CacheCfg.CacheCapacity <= 0 {
		return errors.New("config: cache.capacity must be positive")
	}
	if l := c.Server.CompressLevel; l < 0 || l > 9 {
		return fmt.Errorf("config: server.compressLevel %d out of range 0-9", l)
	}
	if len(c.Routes) == 0 {
		return errors.New("config: at least one route is required")
	}
	return nil
}

// Table compiles the configured routes in declaration order.
func (c *SystemCfg) Table() (*route.Table, error) {
	defs := make([]*route.Definition, 0, len(c.Routes))
	for _, rc := range c.Routes {
		def, err := c.definition(rc)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return route.NewTable(defs...)
}

func (c *SystemCfg) definition(rc RouteCfg) (*route.Definition, error) {
	pattern, err := route.Compile(rc.Pattern)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", rc.Name, err)
	}
	rewrite, err := route.ParseTemplate(rc.Rewrite)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", rc.Name, err)
	}
	upstream, err := c.upstreamURL(rc.Upstream)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", rc.Name, err)
	}

	params := make([]cachekey.Param, 0, len(rc.Params))
	for _, p := range rc.Params {
		params = append(params, cachekey.Param{Name: p.Name, Default: p.Default})
	}

	return &route.Definition{
		Name:         rc.Name,
		Pattern:      pattern,
		Upstream:     upstream,
		Rewrite:      rewrite,
		URLParam:     rc.URLParam,
		AllowedHosts: rc.AllowedHosts,
		Query:        cachekey.Builder{Params: params, ForwardAll: rc.ForwardQuery},
		Kind:         cache.Kind(strings.ToLower(rc.Kind)),
		Methods:      rc.Methods,
		Cacheable:    rc.Cache,
		TTL:          rc.TTL,
		RateLimited:  rc.Limit > 0,
		Limit:        rc.Limit,
		Window:       rc.Window,
	}, nil
}

func (c *SystemCfg) upstreamURL(ref string) (*url.URL, error) {
	raw := ref
	if base, ok := c.Upstreams[ref]; ok {
		raw = base
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("upstream %q: %w", ref, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream %q is neither a named upstream nor an absolute URL", ref)
	}
	return u, nil
}
