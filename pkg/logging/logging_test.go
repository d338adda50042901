package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Info().Str("run_id", "r1").Msg("episode start")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "episode start", line["message"])
	assert.Equal(t, "r1", line["run_id"])
	assert.Contains(t, line, "time")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("noise")
	log.Info().Msg("noise")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("signal")
	assert.NotZero(t, buf.Len())
}

func TestRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", Format: "json"}, nil)
	assert.Error(t, err)
}

func TestConsoleFormatWrites(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info", Format: "console"}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}
