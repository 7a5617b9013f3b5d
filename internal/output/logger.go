// Package output provides the styled, line-granular log sink shared by all
// dump/restore workers. Writes are serialized so concurrent table workers
// never interleave partial lines.
package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Logger is the single shared sink for progress and error lines.
type Logger struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewLogger creates a logger writing to w.
func NewLogger(w io.Writer, verbose bool) *Logger {
	return &Logger{w: w, verbose: verbose}
}

func (l *Logger) line(prefix, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := MutedText.Render(time.Now().Format("15:04:05"))
	fmt.Fprintf(l.w, "%s %s %s\n", ts, prefix, msg)
}

// Info logs a neutral progress line.
func (l *Logger) Info(format string, args ...any) {
	l.line(TitleStyle.Render("•"), fmt.Sprintf(format, args...))
}

// Success logs a completed-step line.
func (l *Logger) Success(format string, args ...any) {
	l.line(SuccessText.Render("✓"), fmt.Sprintf(format, args...))
}

// Warn logs a recoverable problem (a retry, a skipped object).
func (l *Logger) Warn(format string, args ...any) {
	l.line(WarningText.Render("!"), fmt.Sprintf(format, args...))
}

// Error logs a fatal problem before it propagates.
func (l *Logger) Error(format string, args ...any) {
	l.line(DangerText.Render("✗"), fmt.Sprintf(format, args...))
}

// Debug logs only when verbose is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.line(MutedText.Render("·"), MutedText.Render(fmt.Sprintf(format, args...)))
}

// Table returns a logger whose lines carry a styled table-name prefix.
func (l *Logger) Table(name string) *TableLogger {
	return &TableLogger{parent: l, prefix: TableStyle.Render("[" + name + "]")}
}

// TableLogger prefixes every line with its table name.
type TableLogger struct {
	parent *Logger
	prefix string
}

func (t *TableLogger) Info(format string, args ...any) {
	t.parent.Info("%s %s", t.prefix, fmt.Sprintf(format, args...))
}

func (t *TableLogger) Success(format string, args ...any) {
	t.parent.Success("%s %s", t.prefix, fmt.Sprintf(format, args...))
}

func (t *TableLogger) Warn(format string, args ...any) {
	t.parent.Warn("%s %s", t.prefix, fmt.Sprintf(format, args...))
}

func (t *TableLogger) Error(format string, args ...any) {
	t.parent.Error("%s %s", t.prefix, fmt.Sprintf(format, args...))
}

func (t *TableLogger) Debug(format string, args ...any) {
	t.parent.Debug("%s %s", t.prefix, fmt.Sprintf(format, args...))
}
