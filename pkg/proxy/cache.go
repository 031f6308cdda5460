package proxy

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ashpect/cachegate/pkg/cache"
	"github.com/ashpect/cachegate/pkg/route"
	"github.com/ashpect/cachegate/pkg/upstream"
)

// lookup returns a live entry for key. Store failures count as a miss.
func (g *Gateway) lookup(key string, logger zerolog.Logger) (*cache.Entry, bool) {
	entry, ok, err := g.store.Get(key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache lookup failed, fetching live")
		return nil, false
	}
	if !ok || !entry.Live(g.clock.Now()) {
		return nil, false
	}
	return entry, true
}

// storeResponse writes a fresh response through to the cache and reports whether it was stored.
func (g *Gateway) storeResponse(key string, def *route.Definition, resp *upstream.Response, logger zerolog.Logger) bool {
	err := g.store.Put(key, &cache.Entry{
		Kind:        def.Kind,
		ContentType: resp.ContentType,
		Payload:     resp.Body,
	}, def.TTL)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("could not store response")
		return false
	}
	logger.Trace().Str("key", key).Dur("ttl", def.TTL).Msg("stored response")
	return true
}

func (g *Gateway) serveCachedResponse(w http.ResponseWriter, entry *cache.Entry, logger zerolog.Logger) {
	w.Header().Set("Cache-Status", cacheStatusHit(entry.Remaining(g.clock.Now())))
	writeBody(w, http.StatusOK, entry.ContentType, entry.Payload, logger)
}

func writeBody(w http.ResponseWriter, status int, contentType string, body []byte, logger zerolog.Logger) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if status == http.StatusNoContent || status == http.StatusNotModified {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Debug().Err(err).Msg("client went away before the body was written")
	}
}
