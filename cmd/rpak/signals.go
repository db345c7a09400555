//go:build !windows

package main

import (
	"os"
	"syscall"
)

// termsigs lists the signals that terminate the program and require the
// removal of partial outputs.
var termsigs = []os.Signal{
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGPIPE,
	syscall.SIGTERM,
	syscall.SIGXCPU,
	syscall.SIGXFSZ,
}
