//go:build !debug
// +build !debug

package utils

import "github.com/rs/zerolog"

const DefaultLevel = zerolog.InfoLevel
