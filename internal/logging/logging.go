// Package logging configures the shared structured logger.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a JSON logger writing to stdout. The level comes from
// NOTIFY_LOG_LEVEL (default info).
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("NOTIFY_LOG_LEVEL")))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
