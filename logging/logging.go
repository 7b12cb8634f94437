// Package logging configures zerolog for the bridge client and its tests.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "IPCBRIDGE_LOG_LEVEL"
	EnvLogNoColor = "IPCBRIDGE_LOG_NOCOLOR"
	EnvLogJSON    = "IPCBRIDGE_LOG_JSON"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var configureOnce sync.Once

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure sets the global level once per process. The environment wins over the
// profile default.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		level := zerolog.InfoLevel
		if profile == ProfileTest {
			level = zerolog.DebugLevel
		}
		if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
			level = lvl
		}
		zerolog.SetGlobalLevel(level)
		zerolog.DurationFieldUnit = time.Millisecond
	})
}

// New builds a logger tagged with app and installs it as the zerolog global logger.
// Output is a console writer unless IPCBRIDGE_LOG_JSON is true.
func New(app string) zerolog.Logger {
	logger := NewWithWriter(app, output())
	log.Logger = logger
	return logger
}

// NewWithWriter builds a logger tagged with app that writes JSON lines to w.
func NewWithWriter(app string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("app", app).Logger()
}

func output() io.Writer {
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok && v {
		return os.Stdout
	}
	noColor, _ := parseBool(os.Getenv(EnvLogNoColor))
	return zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
}

// ParseLevel accepts the level names used in configuration files.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
