// Package util provides the shared terminal logger.
package util

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm prefixed printers.
// All output goes to stderr by default (pterm's default).

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// SetOutput redirects log output, e.g. away from the REPL's stdout.
func SetOutput(w io.Writer) {
	pterm.DefaultLogger.Writer = w
}

// Logger tags every line with the component that produced it.
type Logger struct {
	component string
}

// Component returns a Logger for the named component.
func Component(name string) Logger {
	return Logger{component: name}
}

func (l Logger) args() []pterm.LoggerArgument {
	return pterm.DefaultLogger.Args("component", l.component)
}

func (l Logger) Debug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...), l.args())
}

func (l Logger) Info(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...), l.args())
}

func (l Logger) Warn(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...), l.args())
}

func (l Logger) Error(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...), l.args())
}
