package configx

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvSource reads process environment variables sharing a prefix.
// EVENTX_IGNORE_LEAKS with prefix "EVENTX_" lands on "ignore.leaks".
type EnvSource struct {
	prefix   string
	priority int
}

func NewEnvSource(prefix string, priority int) Source {
	return &EnvSource{prefix: prefix, priority: priority}
}

func (s *EnvSource) Load() (map[string]any, error) {
	out := tree{}
	for _, kv := range os.Environ() {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		rest, found := strings.CutPrefix(name, s.prefix)
		if !found || rest == "" {
			continue
		}
		out.put(envPath(rest), scalar(raw))
	}
	return out, nil
}

func (s *EnvSource) Name() string { return "env(" + s.prefix + ")" }
func (s *EnvSource) Priority() int { return s.priority }

// DotEnvSource reads KEY=value lines from a file. Blank lines and lines
// starting with # are skipped; matching single or double quotes are stripped.
type DotEnvSource struct {
	path     string
	priority int
}

func NewDotEnvSource(path string, priority int) Source {
	return &DotEnvSource{path: path, priority: priority}
}

func (s *DotEnvSource) Load() (map[string]any, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	out := tree{}
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		name, raw, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("invalid format at line %d: %q", line, text)
		}
		out.put(envPath(strings.TrimSpace(name)), scalar(unquote(strings.TrimSpace(raw))))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return out, nil
}

func (s *DotEnvSource) Name() string { return "dotenv(" + s.path + ")" }
func (s *DotEnvSource) Priority() int { return s.priority }

// MapSource serves a private copy of an in-memory map.
type MapSource struct {
	values   map[string]any
	name     string
	priority int
}

func NewMapSource(values map[string]any, name string, priority int) Source {
	return &MapSource{values: tree(values).clone(), name: name, priority: priority}
}

func (s *MapSource) Load() (map[string]any, error) { return tree(s.values).clone(), nil }
func (s *MapSource) Name() string { return s.name }
func (s *MapSource) Priority() int { return s.priority }

func envPath(name string) []string {
	return strings.Split(strings.ToLower(name), "_")
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// scalar turns a raw string into a bool, int or float when it parses as one.
// "0" stays an int so zero priorities survive.
func scalar(raw string) any {
	switch strings.ToLower(raw) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
