//go:build debug
// +build debug

package utils

import "github.com/rs/zerolog"

// DefaultLevel is the log level used when none is configured.
const DefaultLevel = zerolog.DebugLevel
