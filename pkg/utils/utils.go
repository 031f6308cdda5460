package utils

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// NewLogger builds the process logger. An empty level means DefaultLevel.
func NewLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}

	lvl := DefaultLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
		}
		lvl = parsed
	}

	switch format {
	case "", FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// LogRequest dumps an outbound request at trace level.
func LogRequest(logger zerolog.Logger, req *http.Request, title string, upstream *url.URL) {
	if logger.GetLevel() > zerolog.TraceLevel {
		return
	}

	headers := zerolog.Dict()
	for key, values := range req.Header {
		headers.Strs(key, values)
	}

	ev := logger.Trace().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("host", req.Host).
		Dict("headers", headers)
	if upstream != nil {
		ev = ev.Str("upstream", upstream.Host)
	}
	ev.Msg(title)
}
