// Package testlog gives tests a logger that writes through t.Log.
package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"ipc-bridge/logging"
)

// Start configures test logging and returns a logger bound to t.
func Start(t testing.TB) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Str("test", t.Name()).Logger()
	logger.Info().Msg("start")
	return logger
}
