/*
Package xlog provides a Logger interface and supporting functions
to support control over debug output.

The codec packages accept a Logger for tracing blocks and chunks. Calling the
functions of this package with a nil Logger does nothing, so tracing costs
nothing when it is disabled. The log.Logger type of the standard library
supports the interface; the Logrus type adapts a logrus entry.
*/
package xlog

import "fmt"

// This package requires types to support this interface. The log.Logger type
// supports this interface.
type Logger interface {
	Output(calldepth int, s string) error
}

// Print outputs the arguments using the logger. If the logger is nil nothing
// will be printed.
func Print(l Logger, v ...interface{}) {
	if l != nil {
		l.Output(2, fmt.Sprint(v...))
	}
}

// Printf prints the arguments using the format string. If the logger argument
// is nil nothing will be printed.
func Printf(l Logger, format string, v ...interface{}) {
	if l != nil {
		l.Output(2, fmt.Sprintf(format, v...))
	}
}

// Println prints the arguments and adds a newline. If the logger argument is
// nil nothing will be printed.
func Println(l Logger, v ...interface{}) {
	if l != nil {
		l.Output(2, fmt.Sprintln(v...))
	}
}
