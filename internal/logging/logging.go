package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options selects the logger's level, format, and destination.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds the process logger. An unparsable level falls back to info;
// "json" selects the JSON formatter, anything else the text formatter.
func New(opts Options) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if opts.Output != nil {
		log.SetOutput(opts.Output)
	} else {
		log.SetOutput(os.Stdout)
	}

	if err != nil && opts.Level != "" {
		log.WithField("level", opts.Level).Warn("unknown log level, using info")
	}
	return log
}
