package config

import "time"

type logCfg struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// proxyCfg tunes the outbound client shared by every route.
type proxyCfg struct {
	UserAgent             string        `toml:"userAgent"`
	Timeout               time.Duration `toml:"timeout"`
	MaxConnsPerHost       int           `toml:"maxConnPerHost"`
	MaxIdleConns          int           `toml:"maxIdleConn"`
	MaxIdleConnsPerHost   int           `toml:"maxIdleConnPerHost"`
	IdleConnTimeout       time.Duration `toml:"idleConnTimeout"`
	ResponseHeaderTimeout time.Duration `toml:"responseHeaderTimeout"`
	MaxBodyBytes          int64         `toml:"maxBodyBytes"`
	Coalesce              bool          `toml:"coalesce"`
}

type cacheCfg struct {
	Enabled         bool          `toml:"enabled"`
	Provider        string        `toml:"provider"`
	DSN             string        `toml:"dsn"`
	CacheCapacity   int           `toml:"capacity"`
	CleanupInterval time.Duration `toml:"cleanupInterval"`
}

type rateLimitCfg struct {
	Backend   string `toml:"backend"`
	RedisAddr string `toml:"redisAddr"`
	RedisDB   int    `toml:"redisDB"`
	Prefix    string `toml:"prefix"`
}

type serverCfg struct {
	AllowedOrigins    []string      `toml:"allowedOrigins"`
	CompressLevel     int           `toml:"compressLevel"`
	ReadHeaderTimeout time.Duration `toml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `toml:"shutdownTimeout"`
	Admin             bool          `toml:"admin"`
}

type ParamCfg struct {
	Name    string `toml:"name"`
	Default string `toml:"default"`
}

// RouteCfg is one entry of [[routes]]. Upstream is either a key of [upstreams]
// or an absolute URL. A route is rate limited when Limit is positive.
type RouteCfg struct {
	Name         string        `toml:"name"`
	Pattern      string        `toml:"pattern"`
	Upstream     string        `toml:"upstream"`
	Rewrite      string        `toml:"rewrite"`
	URLParam     string        `toml:"urlParam"`
	AllowedHosts []string      `toml:"allowedHosts"`
	Params       []ParamCfg    `toml:"params"`
	ForwardQuery bool          `toml:"forwardQuery"`
	Kind         string        `toml:"kind"`
	Methods      []string      `toml:"methods"`
	Cache        bool          `toml:"cache"`
	TTL          time.Duration `toml:"ttl"`
	Limit        int           `toml:"limit"`
	Window       time.Duration `toml:"window"`
}

type SystemCfg struct {
	ListenAddr string            `toml:"listenaddr"`
	Log        logCfg            `toml:"log"`
	Proxy      proxyCfg          `toml:"proxy"`
	CacheCfg   cacheCfg          `toml:"cache"`
	RateLimit  rateLimitCfg      `toml:"ratelimit"`
	Server     serverCfg         `toml:"server"`
	Upstreams  map[string]string `toml:"upstreams"`
	Routes     []RouteCfg        `toml:"routes"`
}
