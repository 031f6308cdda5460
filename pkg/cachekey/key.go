// Package cachekey derives cache keys for proxied requests.
//
// A key is the upstream URL the gateway is about to call, with its query in a
// canonical form. Two requests that lead to the same upstream call share a key
// and requests that lead to different calls never do.
package cachekey

import (
	"net/url"
	"sort"
	"strings"
)

// Param is a query parameter that takes part in the upstream call.
type Param struct {
	Name string
	// Default is used when the parameter is absent or empty. An empty Default
	// means the parameter is left out.
	Default string
}

// Builder canonicalises query strings for one route.
type Builder struct {
	Params []Param
	// ForwardAll keeps undeclared parameters, appended after the declared ones
	// in name order.
	ForwardAll bool
}

// Query returns the canonical encoded query for in.
// Declared parameters keep their declaration order, repeated values keep request order.
func (b Builder) Query(in url.Values) string {
	var sb strings.Builder
	add := func(name, value string) {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(value))
	}

	declared := make(map[string]struct{}, len(b.Params))
	for _, p := range b.Params {
		declared[p.Name] = struct{}{}
		values := nonEmpty(in[p.Name])
		if len(values) == 0 {
			if p.Default != "" {
				add(p.Name, p.Default)
			}
			continue
		}
		for _, v := range values {
			add(p.Name, v)
		}
	}

	if b.ForwardAll {
		rest := make([]string, 0, len(in))
		for name := range in {
			if _, ok := declared[name]; !ok {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		for _, name := range rest {
			for _, v := range in[name] {
				add(name, v)
			}
		}
	}
	return sb.String()
}

// Key returns the cache key for a resolved upstream target.
func Key(target *url.URL) string {
	u := url.URL{
		Scheme:   strings.ToLower(target.Scheme),
		Host:     strings.ToLower(target.Host),
		Path:     target.Path,
		RawPath:  target.RawPath,
		RawQuery: target.RawQuery,
	}
	return u.String()
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
