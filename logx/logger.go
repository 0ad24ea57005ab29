package logx

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// OutputFormat defines the log output format
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// Logger represents a logger instance. It is safe for concurrent use.
type Logger struct {
	mu         sync.Mutex
	level      Level
	out        io.Writer
	prefix     string
	showCaller bool
	colored    bool
	format     OutputFormat
}

// New creates a new logger with default settings
func New() *Logger {
	return &Logger{
		level:      InfoLevel,
		out:        os.Stdout,
		showCaller: true,
		colored:    true,
		format:     FormatConsole,
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	l := New()
	l.level = OffLevel
	l.out = io.Discard
	return l
}

// Named returns an independent copy of l writing under prefix.
func (l *Logger) Named(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{level: l.level, out: l.out, prefix: prefix, showCaller: l.showCaller, colored: l.colored, format: l.format}
}

// SetLevel sets the minimum level that is written.
func (l *Logger) SetLevel(level Level) { l.update(func(l *Logger) { l.level = level }) }

func (l *Logger) SetOutput(w io.Writer) { l.update(func(l *Logger) { l.out = w }) }
func (l *Logger) SetPrefix(prefix string) { l.update(func(l *Logger) { l.prefix = prefix }) }
func (l *Logger) SetShowCaller(show bool) { l.update(func(l *Logger) { l.showCaller = show }) }
func (l *Logger) SetColored(colored bool) { l.update(func(l *Logger) { l.colored = colored }) }

// SetFormat switches between console and JSON lines. JSON is never colored.
func (l *Logger) SetFormat(format OutputFormat) {
	l.update(func(l *Logger) {
		l.format = format
		if format == FormatJSON {
			l.colored = false
		}
	})
}

func (l *Logger) update(fn func(*Logger)) {
	l.mu.Lock()
	fn(l)
	l.mu.Unlock()
}

// IsLevelEnabled checks if a level is enabled
func (l *Logger) IsLevelEnabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level < OffLevel && level >= l.level
}

// callerOutsideLogx walks up the stack to the first frame that is not logx
// itself. Test files inside logx count as callers.
func callerOutsideLogx() string {
	pcs := make([]uintptr, 16)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs)])
	for {
		f, more := frames.Next()
		file := filepath.ToSlash(f.File)
		if !strings.Contains(file, "/logx/") || strings.HasSuffix(file, "_test.go") {
			return fmt.Sprintf("%s:%d", filepath.Base(file), f.Line)
		}
		if !more {
			return ""
		}
	}
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if !l.IsLevelEnabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var caller string
	if l.showCaller {
		caller = callerOutsideLogx()
	}
	if l.format == FormatJSON {
		l.writeJSON(level, caller, msg)
		return
	}
	l.writeConsole(level, caller, msg)
}

type jsonEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Prefix    string `json:"prefix,omitempty"`
	Caller    string `json:"caller,omitempty"`
	Message   string `json:"message"`
}

func (l *Logger) writeJSON(level Level, caller, msg string) {
	data, err := json.Marshal(jsonEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level.String(),
		Prefix:    l.prefix,
		Caller:    caller,
		Message:   msg,
	})
	if err != nil {
		return
	}
	l.out.Write(append(data, '\n'))
}

// writeConsole prints "[ts] prefix [LEVEL] file:line: msg".
func (l *Logger) writeConsole(level Level, caller, msg string) {
	var b strings.Builder
	b.WriteString("[" + time.Now().Format(time.DateTime) + "] ")
	if l.prefix != "" {
		b.WriteString(l.prefix + " ")
	}
	name := level.String()
	if l.colored {
		name = level.Paint()
	}
	b.WriteString("[" + name + "]")
	if caller != "" {
		b.WriteString(" " + caller)
	}
	b.WriteString(": " + msg + "\n")
	io.WriteString(l.out, b.String())
}

func (l *Logger) Trace(msg string, args ...any) { l.log(TraceLevel, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log(DebugLevel, msg, args...) }
func (l *Logger) Info(msg string, args ...any) { l.log(InfoLevel, msg, args...) }
func (l *Logger) Warn(msg string, args ...any) { l.log(WarnLevel, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(ErrorLevel, msg, args...) }

// DebugStruct logs value rendered with Compact. Rendering is skipped when
// debug is disabled.
func (l *Logger) DebugStruct(name string, value any) {
	if !l.IsLevelEnabled(DebugLevel) {
		return
	}
	l.log(DebugLevel, "%s = %s", name, Compact(value))
}
