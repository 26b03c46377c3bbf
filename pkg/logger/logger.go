package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// SetLevel accepts zerolog level names ("debug", "warn", ...). Unknown names keep the current level.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

// For returns a child logger tagged with a component name such as "SESSION" or "LAN".
func For(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// Nop is handy in tests and for optional collaborators.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
