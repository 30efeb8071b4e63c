// Package shellaslog provides the launcher's minimal stderr logger.
package shellaslog

import (
	"fmt"
	"os"
)

type Logger struct {
	verbose bool
}

func New(verbose bool) *Logger {
	return &Logger{verbose: verbose}
}

func (l *Logger) printf(step string, format string, args ...interface{}) {
	header := fmt.Sprintf("[shell-as %s] ", step)
	fmt.Fprintf(os.Stderr, header+format+"\n", args...)
}

// Infof logs a line only when verbose logging is enabled.
func (l *Logger) Infof(step string, format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.printf(step, format, args...)
}

// Errorf always logs, regardless of the verbose flag.
func (l *Logger) Errorf(step string, format string, args ...interface{}) {
	l.printf(step, format, args...)
}

// Dump writes the verbose context dump, one line per field, to
// stderr, unconditionally (the caller only calls Dump when --verbose
// was given).
func Dump(lines []string) {
	for _, line := range lines {
		fmt.Fprintln(os.Stderr, line)
	}
}
