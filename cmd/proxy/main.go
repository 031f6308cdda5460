package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ashpect/cachegate/pkg/cache"
	"github.com/ashpect/cachegate/pkg/client"
	"github.com/ashpect/cachegate/pkg/config"
	"github.com/ashpect/cachegate/pkg/proxy"
	"github.com/ashpect/cachegate/pkg/ratelimit"
	"github.com/ashpect/cachegate/pkg/server"
	"github.com/ashpect/cachegate/pkg/upstream"
	"github.com/ashpect/cachegate/pkg/utils"
)

func main() {
	configFile := flag.String("config", config.DefaultPath, "location of config file")
	listenAddr := flag.String("listen", "", "listen address (overrides config and PORT)")
	logLevel := flag.String("log-level", "", "trace, debug, info, warn or error")
	logFormat := flag.String("log-format", "", "console or json")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("gateway stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.SystemCfg, logger zerolog.Logger) error {
	table, err := cfg.Table()
	if err != nil {
		return err
	}

	opts := []proxy.GatewayOption{
		proxy.WithLogger(logger.With().Str("component", "gateway").Logger()),
		proxy.WithCoalescing(cfg.Proxy.Coalesce),
	}

	if cfg.CacheCfg.Enabled {
		store, err := cache.New(cfg.CacheCfg.Provider, cfg.CacheCfg.DSN, cache.Options{
			Capacity:        cfg.CacheCfg.CacheCapacity,
			CleanupInterval: cfg.CacheCfg.CleanupInterval,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, proxy.WithCache(store))
	}

	limiter, err := ratelimit.New(cfg.RateLimit.Backend, ratelimit.Options{
		RedisAddr: cfg.RateLimit.RedisAddr,
		RedisDB:   cfg.RateLimit.RedisDB,
		Prefix:    cfg.RateLimit.Prefix,
	})
	if err != nil {
		return err
	}
	defer limiter.Close()
	opts = append(opts, proxy.WithLimiter(limiter))

	transport := client.NewTransport(
		client.WithMaxConnsPerHost(cfg.Proxy.MaxConnsPerHost),
		client.WithMaxIdleConns(cfg.Proxy.MaxIdleConns),
		client.WithMaxIdleConnsPerHost(cfg.Proxy.MaxIdleConnsPerHost),
		client.WithIdleConnTimeout(cfg.Proxy.IdleConnTimeout),
		client.WithResponseHeaderTimeout(cfg.Proxy.ResponseHeaderTimeout),
	)
	forwarder := upstream.NewForwarder(
		upstream.WithClient(client.NewClient(client.WithTimeout(cfg.Proxy.Timeout), client.WithTransport(transport))),
		upstream.WithUserAgent(cfg.Proxy.UserAgent),
		upstream.WithMaxBodyBytes(cfg.Proxy.MaxBodyBytes),
		upstream.WithLogger(logger.With().Str("component", "upstream").Logger()),
	)

	gateway, err := proxy.NewGateway(table, forwarder, opts...)
	if err != nil {
		return err
	}

	handler := server.NewHandler(gateway, gateway, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		CompressLevel:  cfg.Server.CompressLevel,
		Admin:          cfg.Server.Admin,
		Logger:         logger,
	})
	srv := server.New(cfg.ListenAddr, handler, cfg.Server.ReadHeaderTimeout)

	errc := make(chan error, 1)
	go func() {
		for _, d := range table.Definitions() {
			logger.Info().
				Str("route", d.Name).
				Str("pattern", d.Pattern.String()).
				Str("upstream", d.Upstream.String()).
				Bool("cache", d.Cacheable).
				Bool("ratelimit", d.RateLimited).
				Msg("route registered")
		}
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("cache", cfg.CacheCfg.Provider).
			Str("ratelimit", cfg.RateLimit.Backend).
			Msg("gateway listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
