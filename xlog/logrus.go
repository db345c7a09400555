package xlog

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Logrus writes the output of the package functions as debug messages of a
// logrus entry.
type Logrus struct {
	Entry *logrus.Entry
}

// NewLogrus returns a Logger for the entry. It returns nil if the entry
// doesn't log debug messages, which disables the output completely.
func NewLogrus(entry *logrus.Entry) Logger {
	if entry == nil || !entry.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return nil
	}
	return Logrus{Entry: entry}
}

// Output logs s at debug level. The call depth is ignored.
func (l Logrus) Output(calldepth int, s string) error {
	l.Entry.Debug(strings.TrimSuffix(s, "\n"))
	return nil
}
