package testlog

import (
	"testing"

	"github.com/danmuck/frameecho/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start configures the test log profile and returns a logger tagged with
// the test name for injection into services under test.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	logger := log.Logger.With().Str("test", t.Name()).Logger()
	logger.Info().Msg("test start")
	return logger
}
