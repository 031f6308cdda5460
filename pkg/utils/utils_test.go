package utils

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_levels(t *testing.T) {
	logger, err := NewLogger("", FormatJSON, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLevel, logger.GetLevel())

	logger, err = NewLogger("WARN", FormatJSON, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	_, err = NewLogger("loud", FormatJSON, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = NewLogger("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewLogger_json(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", FormatJSON, &buf)
	require.NoError(t, err)

	logger.Info().Str("route", "api").Msg("hello")
	assert.Contains(t, buf.String(), `"route":"api"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestLogRequest_traceOnly(t *testing.T) {
	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodGet, "https://uploads.example.org/covers/a/b.jpg", nil)
	req.Header.Set("Accept", "image/*")
	upstream, _ := url.Parse("https://uploads.example.org")

	LogRequest(zerolog.New(&buf).Level(zerolog.DebugLevel), req, "upstream request", upstream)
	assert.Empty(t, buf.String())

	LogRequest(zerolog.New(&buf).Level(zerolog.TraceLevel), req, "upstream request", upstream)
	assert.Contains(t, buf.String(), `"Accept":["image/*"]`)
	assert.Contains(t, buf.String(), `"upstream":"uploads.example.org"`)
}
