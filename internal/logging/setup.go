package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogFormat represents the logging format type
type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// UnmarshalText implements encoding.TextUnmarshaler for type-safe config parsing
func (f *LogFormat) UnmarshalText(text []byte) error {
	value := LogFormat(strings.ToLower(string(text)))
	switch value {
	case FormatText, FormatJSON:
		*f = value
		return nil
	default:
		return fmt.Errorf("invalid log format %q, must be %q or %q", string(text), FormatText, FormatJSON)
	}
}

// NewLogger configures the global logrus logger and returns it, so dependencies
// logging through logrus share the format.
// An unset format means text; the level comes from TT_LOG_LEVEL and defaults to info.
func NewLogger(format LogFormat) *logrus.Logger {
	if format == FormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   true,
			FullTimestamp: true,
		})
	}

	level, err := logrus.ParseLevel(os.Getenv("TT_LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(level)

	return logrus.StandardLogger()
}
