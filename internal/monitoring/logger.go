package monitoring

import "log"

// Logf is the package-level diagnostic logger shared by the stats reporters.
// It defaults to log.Printf; replace it with SetLogger to redirect or mute
// pipeline reporting.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
