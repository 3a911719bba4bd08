package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias for logrus.Fields so callers do not import logrus
// directly.
type Fields = logrus.Fields

var global = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))

	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		},
	})

	return l
}

func parseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// Configure applies the config-driven level and, when file is non-empty,
// tees output into a size-rotated log file next to stderr.
func Configure(level, file string) {
	if level != "" {
		global.SetLevel(parseLevel(level))
	}

	if file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		global.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}
}

// Component returns an entry tagged with the originating component, the
// form every package-level logger in this repo uses.
func Component(name string) *logrus.Entry {
	return global.WithField("component", name)
}
