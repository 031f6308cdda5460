package upstream

import (
	"net"
	"net/http"
	"strings"
)

var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// never forwarded from the client
var privateHeaders = []string{
	"Cookie",
	"Authorization",
	"Origin",
	"Referer",
	"Accept-Encoding",
	"Content-Length",
}

func removeHopByHopHeaders(header http.Header) {
	// headers named by Connection are hop-by-hop too
	for _, v := range header.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				header.Del(name)
			}
		}
	}
	for _, key := range hopByHopHeaders {
		header.Del(key)
	}
}

// passthroughHeaders returns the client headers that may reach an upstream.
func passthroughHeaders(in http.Header) http.Header {
	out := in.Clone()
	if out == nil {
		return make(http.Header)
	}
	removeHopByHopHeaders(out)
	for _, key := range privateHeaders {
		out.Del(key)
	}
	for key := range out {
		if strings.HasPrefix(key, "X-Forwarded-") {
			delete(out, key)
		}
	}
	return out
}

func setForwardedHeaders(out http.Header, inbound *http.Request) {
	if inbound == nil {
		return
	}
	out.Set("X-Forwarded-Host", inbound.Host)
	proto := "http"
	if inbound.TLS != nil {
		proto = "https"
	}
	out.Set("X-Forwarded-Proto", proto)

	// RemoteAddr is a bare IP once middleware.RealIP has rewritten it
	host, _, err := net.SplitHostPort(inbound.RemoteAddr)
	if err != nil {
		host = inbound.RemoteAddr
	}
	if host != "" {
		out.Set("X-Forwarded-For", host)
	}
}
