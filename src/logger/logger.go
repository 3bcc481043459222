package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jira_code_agent/src/model"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "jira_code_agent"

// Logger stays silent until InitLogger runs, so library use and tests log nothing
var Logger = zerolog.Nop()

var timeFormats = map[string]string{
	"rfc3339": time.RFC3339,
	"unix":    zerolog.TimeFormatUnix,
	"iso8601": "2006-01-02T15:04:05.000Z07:00",
}

// InitLogger configures the global logger from LOG_* settings
func InitLogger(config model.LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", config.Level, err)
	}

	output, err := openOutput(config)
	if err != nil {
		return err
	}
	if strings.EqualFold(config.Format, "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if f, ok := timeFormats[strings.ToLower(config.TimeFormat)]; ok {
		zerolog.TimeFieldFormat = f
	}

	Logger = zerolog.New(output).With().Timestamp().Str("service", serviceName).Logger()
	log.Logger = Logger

	Logger.Debug().
		Str("level", level.String()).
		Str("format", config.Format).
		Str("output", config.Output).
		Msg("Logger initialized")
	return nil
}

func openOutput(config model.LogConfig) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case "stderr":
		return os.Stderr, nil
	case "file":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file '%s': %w", config.FilePath, err)
		}
		return file, nil
	default:
		return os.Stdout, nil
	}
}

// WithSession returns a child logger tagged with the session and ticket
func WithSession(sessionID, ticketKey string) zerolog.Logger {
	return Logger.With().Str("session_id", sessionID).Str("ticket_key", ticketKey).Logger()
}

func Info() *zerolog.Event  { return Logger.Info() }
func Debug() *zerolog.Event { return Logger.Debug() }
func Warn() *zerolog.Event  { return Logger.Warn() }
func Error() *zerolog.Event { return Logger.Error() }
