package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewProduction(&buf)
	l.Info().Str("site_id", "site-1").Msg("connected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "site-1", entry["site_id"])
	assert.Equal(t, "connected", entry["message"])
}

func TestNewDevelopmentWritesConsole(t *testing.T) {
	var buf bytes.Buffer
	l := NewDevelopment(&buf)
	l.Warn().Msg("careful")
	assert.Contains(t, buf.String(), "WRN")
	assert.Contains(t, buf.String(), "careful")
}
