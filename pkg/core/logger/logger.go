// Package logger holds the process-wide structured logger.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the global logger. It is usable before Init is called.
var Log = logrus.New()

// Init configures level and output. Output always goes to stdout and, when
// filePath is set, is appended to that file as well.
func Init(levelStr string, filePath string) error {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	writers := []io.Writer{os.Stdout}
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		writers = append(writers, file)
	}
	Log.SetOutput(io.MultiWriter(writers...))

	return nil
}

// Component returns an entry tagged with the given component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// Silence discards all output. Used by tests and one-shot CLI runs.
func Silence() {
	Log.SetOutput(io.Discard)
}
