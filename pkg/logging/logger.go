// Package logging builds the hclog loggers every themepack entry point uses.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// NewLogger creates an hclog logger with the standard themepack settings:
// UTC ISO timestamps, JSON output when THEMEPACK_JSON_LOG=1, and a 🎨 line
// prefix on console output.
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = DefaultOutput()
	}

	jsonFormat := os.Getenv("THEMEPACK_JSON_LOG") == "1"
	if !jsonFormat {
		output = NewPrefixWriter("🎨 ", output)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format without timezone
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// GetLogLevel returns the configured log level from the environment.
func GetLogLevel() string {
	level := os.Getenv("THEMEPACK_LOG_LEVEL")
	if level == "" {
		level = "warn" // Default to warn for production safety
	}
	return level
}

// DefaultOutput returns the configured log sink: THEMEPACK_LOG_PATH when set
// and writable, stderr otherwise.
func DefaultOutput() io.Writer {
	if logPath := os.Getenv("THEMEPACK_LOG_PATH"); logPath != "" {
		if file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			return file
		}
	}
	return os.Stderr
}
