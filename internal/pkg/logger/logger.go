package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds the application logger. format is "json" or "text".
func New(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	return log
}

// Component returns an entry tagged with the component name
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

// Discard returns an entry that writes nowhere, for tests
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
