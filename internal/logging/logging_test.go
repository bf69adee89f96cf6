package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Options{Level: "warn", Console: &buf})
	defer closer.Close()

	log.Info().Msg("hidden")
	log.Warn().Str("component", "queue").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "queue")
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Options{Level: "loud", Console: &buf})
	defer closer.Close()

	log.Debug().Msg("debug")
	log.Info().Msg("info")
	assert.NotContains(t, buf.String(), "debug")
	assert.Contains(t, buf.String(), "info")
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songbird.log")
	var buf bytes.Buffer
	log, closer := New(Options{Level: "info", File: path, Console: &buf})

	log.Info().Str("guild", "g1").Msg("voice connected")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"guild":"g1"`)
	assert.Contains(t, string(data), `"message":"voice connected"`)
}
