package common

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ConfigureLogging sets the logrus level from the verbose flag and the
// SPIKEPLOT_LOG_LEVEL environment variable. The environment wins.
func ConfigureLogging(verbose bool) {
	logrus.SetLevel(logrus.InfoLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if raw := strings.TrimSpace(os.Getenv(EnvLogLevel)); raw != "" {
		lvl, err := logrus.ParseLevel(raw)
		if err != nil {
			logrus.Warnf("ignoring %s=%q: %s", EnvLogLevel, raw, err)
			return
		}
		logrus.SetLevel(lvl)
	}
}

// RedirectLogging sends log output to SPIKEPLOT_LOG_FILE, or discards it when
// the variable is unset. Used by commands that own the terminal. The returned
// function closes the file.
func RedirectLogging() (func(), error) {
	path := os.Getenv(EnvLogFile)
	if path == "" {
		logrus.SetOutput(io.Discard)
		return func() {}, nil
	}
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	logrus.SetOutput(fd)
	return func() { fd.Close() }, nil
}
