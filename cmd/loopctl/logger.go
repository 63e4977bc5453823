package main

import (
	"io"

	glog "github.com/goliatone/go-logger/glog"
)

// newLoggerProvider returns the go-logger JSON logger writing to w. Debug
// enables debug level output.
func newLoggerProvider(w io.Writer, debug bool) glog.LoggerProvider {
	level := glog.Info
	if debug {
		level = glog.Debug
	}
	return glog.NewLogger(glog.WithWriter(w), glog.WithLevel(level))
}
