package util

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LoggerOrDiscard returns logger, or a logger that drops everything when logger is nil.
func LoggerOrDiscard(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger != nil {
		return logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
