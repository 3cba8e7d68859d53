package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Config configures the application logger
type Config struct {
	Level  string
	Format string // json, text
}

// New creates the logrus logger every component hangs its
// WithField("component", ...) entries off
func New(cfg Config) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	log.SetOutput(os.Stdout)
	return log
}
