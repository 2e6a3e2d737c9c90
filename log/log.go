package log

import (
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug bool

// Logger is a global interface for rtfx loggers. It's satisfied by both
// *logrus.Logger and *logrus.Entry.
type Logger interface {
	Debug(...interface{})
	Debugf(string, ...interface{})
	Info(...interface{})
	Infof(string, ...interface{})
	Warn(...interface{})
	Warnf(string, ...interface{})
	Error(...interface{})
	Errorf(string, ...interface{})
}

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("RTFX_DEBUG"))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Component returns a logger entry tagged with component name and id.
func Component(name, id string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"component": name,
		"id":        id,
	})
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
