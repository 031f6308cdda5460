// Package server assembles the HTTP surface of the gateway.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Purger drops every cached response.
type Purger interface {
	Purge() error
}

type Options struct {
	AllowedOrigins []string
	// CompressLevel is the gzip level; zero disables compression.
	CompressLevel int
	// Admin mounts POST /cache/purge.
	Admin  bool
	Logger zerolog.Logger
}

// NewHandler wraps the gateway with the shared middleware stack. Every path not
// claimed by the server itself goes to gateway.
func NewHandler(gateway http.Handler, purger Purger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Cache-Status", "Retry-After"},
		MaxAge:         300,
	}))
	if opts.CompressLevel > 0 {
		r.Use(middleware.Compress(opts.CompressLevel))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Admin && purger != nil {
		r.Post("/cache/purge", purgeHandler(purger))
	}

	r.NotFound(gateway.ServeHTTP)
	r.MethodNotAllowed(gateway.ServeHTTP)
	return r
}

func purgeHandler(p Purger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := p.Purge(); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("cache purge failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		hlog.FromRequest(r).Info().Msg("cache purged")
		w.WriteHeader(http.StatusNoContent)
	}
}

// New builds the http.Server for addr.
func New(addr string, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
