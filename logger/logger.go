// Package logger configures the process-wide logrus logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Config holds the logging settings.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" env:"LEVEL"`
	// Format is text or json.
	Format string `toml:"format" env:"FORMAT"`
}

// DefaultConfig returns the logging defaults.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text"}
}

const timestampFormat = "2006-01-02 15:04:05"

// Init configures the standard logrus logger to write to w and redirects gin's
// writers into it.
func Init(cfg Config, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.StandardLogger()
	l.SetOutput(w)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		defer l.Warnf("invalid log level %q, using %q", cfg.Level, level)
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
		defer l.Warnf("invalid log format %q, using text", cfg.Format)
	}

	gin.DefaultWriter = l.WriterLevel(logrus.DebugLevel)
	gin.DefaultErrorWriter = l.WriterLevel(logrus.ErrorLevel)
}
