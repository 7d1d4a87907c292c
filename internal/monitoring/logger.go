// Package monitoring holds the shared diagnostic logger for the
// reconciliation pipeline.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Scoped returns a logger that prefixes every line with the given stage
// name, so pipeline stages are distinguishable in shared output.
func Scoped(stage string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf("["+stage+"] "+format, v...)
	}
}
