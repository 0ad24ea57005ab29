package logx

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Level orders message severities; OffLevel silences a logger.
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	OffLevel
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "OFF"}

func (l Level) String() string {
	if l < TraceLevel || l > OffLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel accepts level names in any case, plus "warning".
// On failure it returns InfoLevel along with the error.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return WarnLevel, nil
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return InfoLevel, fmt.Errorf("logx: unknown level %q", s)
}

var palette = map[Level]*color.Color{
	TraceLevel: color.New(color.FgHiBlack),
	DebugLevel: color.New(color.FgCyan),
	InfoLevel:  color.New(color.FgGreen),
	WarnLevel:  color.New(color.FgYellow),
	ErrorLevel: color.New(color.FgRed, color.Bold),
}

// Paint returns the level name in its console color, regardless of whether
// stdout is a terminal.
func (l Level) Paint() string {
	c, ok := palette[l]
	if !ok {
		return l.String()
	}
	c.EnableColor()
	return c.Sprint(l.String())
}
