package proxy

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

const cacheName = "cachegate"

// Cache-Status values, see RFC 9211.
func cacheStatusHit(remaining time.Duration) string {
	return cacheName + "; hit; ttl=" + strconv.Itoa(ceilSeconds(remaining))
}

func cacheStatusMiss(stored bool) string {
	if stored {
		return cacheName + "; fwd=uri-miss; stored"
	}
	return cacheName + "; fwd=uri-miss"
}

func setRetryAfter(header http.Header, d time.Duration) {
	header.Set("Retry-After", strconv.Itoa(max(ceilSeconds(d), 1)))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
