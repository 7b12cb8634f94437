package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := ParseLevel("")
	assert.False(t, ok)
	_, ok = ParseLevel("loud")
	assert.False(t, ok)
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("bridge", &buf)
	logger.Error().Msg("hello")

	assert.Contains(t, buf.String(), `"app":"bridge"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestParseBool(t *testing.T) {
	v, ok := parseBool("true")
	assert.True(t, ok)
	assert.True(t, v)

	_, ok = parseBool("maybe")
	assert.False(t, ok)
}

func TestOutputSelection(t *testing.T) {
	t.Setenv(EnvLogJSON, "true")
	assert.Equal(t, os.Stdout, output())

	t.Setenv(EnvLogJSON, "")
	t.Setenv(EnvLogNoColor, "1")
	cw, ok := output().(zerolog.ConsoleWriter)
	require.True(t, ok)
	assert.True(t, cw.NoColor)
	assert.Equal(t, os.Stdout, cw.Out)

	t.Setenv(EnvLogNoColor, "")
	cw, ok = output().(zerolog.ConsoleWriter)
	require.True(t, ok)
	assert.False(t, cw.NoColor)
}

func TestNewInstallsGlobalLogger(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	t.Setenv(EnvLogJSON, "true")

	logger := New("bridge")
	assert.Equal(t, logger, log.Logger)
}
