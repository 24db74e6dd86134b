// Package log configures the process-wide logrus logger used by
// dynamic2basic: level and format are set once from CLI flags, and
// every package logs through the logrus package-level functions
// against that configuration.
package log

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Configure sets the process-wide logrus level and formatter.
// format must be "text" or "json".
func Configure(level, format string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "log: unknown level %q", level)
	}
	logrus.SetLevel(l)

	switch format {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("log: unknown format %q", format)
	}
	return nil
}
