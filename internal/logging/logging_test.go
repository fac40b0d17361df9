package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "json", &buf)

	l.Info().Str("timeframe", "hour4").Str("stage", "one").Msg("funnel evaluated")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "hour4", rec["timeframe"])
	assert.Equal(t, "funnel evaluated", rec["message"])
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", "json", &buf)

	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", "console", &buf)

	l.Debug().Str("timeframe", "day").Msg("sleeping")
	out := buf.String()
	assert.True(t, strings.Contains(out, "sleeping"), out)
	assert.Contains(t, out, "day")
}
