// Package logger provides a small wrapper around logrus so every package in
// this repository gets a named, leveled logger instead of reaching for the
// global logrus singleton directly.
package logger

import (
	"os"

	"github.com/chappjc/logrus-prefix"
	"github.com/mattn/go-isatty"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var root = logrus.New()

func init() {
	root.SetOutput(os.Stderr)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		root.SetFormatter(&prefixed.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		root.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	}
	root.AddHook(logrusprefix.NewHook())
}

// SetLevel sets the verbosity of every logger returned by GetLogger. It is
// called once at startup from the parsed configuration.
func SetLevel(level logrus.Level) {
	root.SetLevel(level)
}

// SetLogFile additionally fans log output out to path at the given level,
// using lfshook the same way coredhcp wires its file sink.
func SetLogFile(path string, level logrus.Level) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	writers := make(lfshook.WriterMap, level+1)
	for l := logrus.PanicLevel; l <= level; l++ {
		writers[l] = f
	}
	root.AddHook(lfshook.NewHook(writers, root.Formatter))
	return nil
}

// GetLogger returns a logger tagged with name via the "module" field, the
// way each coredhcp plugin obtains its own logger.
func GetLogger(name string) logrus.FieldLogger {
	return root.WithField("module", name)
}
