// Package logger provides levelled logging for addrcrawl.
// Warnings and errors are always written. Debug and info messages are
// written when verbose mode is enabled via the --verbose flag, or for a
// single crawl when its request asks for debug output.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func write(level, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	msg := fmt.Sprintf(format, args...)
	if prefix != "" {
		fmt.Fprintf(output, "[%s] %s: %s\n", level, prefix, msg)
		return
	}
	fmt.Fprintf(output, "[%s] %s\n", level, msg)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	if IsVerbose() {
		write("DEBUG", "", format, args...)
	}
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	if IsVerbose() {
		write("INFO", "", format, args...)
	}
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	write("WARN", "", format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	write("ERROR", "", format, args...)
}

// Logger scopes messages to one unit of work, such as a crawl.
// A nil *Logger logs like the package functions.
type Logger struct {
	prefix string
	debug  bool
}

// New returns a Logger whose messages carry prefix. When debug is true its
// debug and info messages are written regardless of verbose mode.
func New(prefix string, debug bool) *Logger {
	return &Logger{prefix: prefix, debug: debug}
}

// With returns a child Logger with prefix appended.
func (l *Logger) With(prefix string) *Logger {
	if l == nil {
		return New(prefix, false)
	}
	p := prefix
	if l.prefix != "" {
		p = l.prefix + " " + prefix
	}
	return &Logger{prefix: p, debug: l.debug}
}

func (l *Logger) enabled() bool {
	return (l != nil && l.debug) || IsVerbose()
}

func (l *Logger) name() string {
	if l == nil {
		return ""
	}
	return l.prefix
}

// Debug prints a message if debug output is enabled for this Logger.
func (l *Logger) Debug(format string, args ...any) {
	if l.enabled() {
		write("DEBUG", l.name(), format, args...)
	}
}

// Info prints a message if debug output is enabled for this Logger.
func (l *Logger) Info(format string, args ...any) {
	if l.enabled() {
		write("INFO", l.name(), format, args...)
	}
}

// Warn prints a warning message.
func (l *Logger) Warn(format string, args ...any) {
	write("WARN", l.name(), format, args...)
}

// Error prints an error message.
func (l *Logger) Error(format string, args ...any) {
	write("ERROR", l.name(), format, args...)
}
