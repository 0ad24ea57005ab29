package logx

import (
	"os"
	"strings"
)

var std = New()

func init() { Configure(std, os.Getenv) }

// Configure reads LOG_LEVEL, LOG_FORMAT, LOG_COLOR and LOG_CALLER through
// getenv and applies whichever are set. Unparseable levels are ignored.
func Configure(l *Logger, getenv func(string) string) {
	if raw := getenv("LOG_LEVEL"); raw != "" {
		if lvl, err := ParseLevel(raw); err == nil {
			l.SetLevel(lvl)
		}
	}
	if raw := getenv("LOG_FORMAT"); raw != "" {
		format := FormatConsole
		if strings.EqualFold(raw, "json") {
			format = FormatJSON
		}
		l.SetFormat(format)
	}
	if on, ok := envSwitch(getenv("LOG_COLOR")); ok {
		l.SetColored(on)
	}
	if on, ok := envSwitch(getenv("LOG_CALLER")); ok {
		l.SetShowCaller(on)
	}
}

// envSwitch reports ok for any non-empty value; only "false" turns it off.
func envSwitch(raw string) (on, ok bool) {
	if raw == "" {
		return false, false
	}
	return !strings.EqualFold(raw, "false"), true
}

// GetLogger returns the process-wide logger.
func GetLogger() *Logger { return std }

func SetLevel(level Level) { std.SetLevel(level) }
func SetColored(colored bool) { std.SetColored(colored) }

func Debug(msg string, args ...any) { std.log(DebugLevel, msg, args...) }
func Info(msg string, args ...any) { std.log(InfoLevel, msg, args...) }
func Warn(msg string, args ...any) { std.log(WarnLevel, msg, args...) }
func Error(msg string, args ...any) { std.log(ErrorLevel, msg, args...) }

// DebugStruct logs value rendered with Compact on the process-wide logger.
func DebugStruct(name string, value any) { std.DebugStruct(name, value) }
