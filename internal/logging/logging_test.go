package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("text")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, l)

	l, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, l)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.InfoLevel, FormatJSON)

	logger.Debug().Msg("hidden")
	logger.Info().Str("worker", "temp").Msg("worker started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "worker started", entry["message"])
	assert.Equal(t, "temp", entry["worker"])
	assert.Equal(t, "topicsink", entry["service"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.WarnLevel, FormatText)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("record skipped")

	out := buf.String()
	assert.Contains(t, out, "record skipped")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "{")
}
