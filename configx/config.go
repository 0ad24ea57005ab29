package configx

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
)

// Source priorities. Higher values override lower ones.
const (
	PriorityDefaults = 0
	PriorityEnv      = 100
	PriorityDotEnv   = 200
	PriorityMap      = 300
)

// Config is a merged, read-mostly view over a set of sources.
type Config interface {
	// Get returns the value at a dotted key such as "ignore.leaks".
	// The empty key returns the whole tree.
	Get(key string) Value
	Set(key string, val any)
	Has(key string) bool
	// AllSettings returns a copy that callers may mutate freely.
	AllSettings() map[string]any
	// AddSource registers source and reloads everything.
	AddSource(source Source) error
	LoadAll() error
}

// Source produces one layer of configuration.
type Source interface {
	Load() (map[string]any, error)
	Name() string
	Priority() int
}

// Option configures New.
type Option func(*configuration)

// WithSource adds an arbitrary source.
func WithSource(source Source) Option {
	return func(c *configuration) { c.sources = append(c.sources, source) }
}

// WithEnv reads variables starting with prefix.
func WithEnv(prefix string) Option {
	return WithSource(NewEnvSource(prefix, PriorityEnv))
}

// WithDotEnv reads a .env file. A missing file is an error.
func WithDotEnv(path string) Option {
	return WithSource(NewDotEnvSource(path, PriorityDotEnv))
}

// WithMap layers values above every other built-in source.
func WithMap(values map[string]any, name string) Option {
	return WithSource(NewMapSource(values, name, PriorityMap))
}

// WithDefaults layers values below every other built-in source.
func WithDefaults(defaults map[string]any) Option {
	return WithSource(NewMapSource(defaults, "defaults", PriorityDefaults))
}

// WithRequiredEnvs makes New fail when any of names is unset or empty.
func WithRequiredEnvs(names ...string) Option {
	return func(c *configuration) { c.required = append(c.required, names...) }
}

type configuration struct {
	mu       sync.RWMutex
	tree     tree
	sources  []Source
	required []string
}

// New builds a Config from opts and loads it once.
func New(opts ...Option) (Config, error) {
	c := &configuration{tree: tree{}}
	for _, opt := range opts {
		opt(c)
	}
	if missing := unsetEnvs(c.required); len(missing) > 0 {
		return nil, fmt.Errorf("configx: required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if err := c.LoadAll(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *configuration) Get(key string) Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if key == "" {
		return newValue("", c.tree.clone())
	}
	v, _ := c.tree.lookup(splitKey(key))
	return newValue(key, v)
}

func (c *configuration) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.put(splitKey(key), val)
}

func (c *configuration) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.tree.lookup(splitKey(key))
	return ok && v != nil
}

func (c *configuration) AllSettings() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.clone()
}

func (c *configuration) AddSource(source Source) error {
	c.mu.Lock()
	c.sources = append(c.sources, source)
	c.mu.Unlock()
	return c.LoadAll()
}

// LoadAll rebuilds the tree from scratch. On error the previous tree is kept.
func (c *configuration) LoadAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	slices.SortStableFunc(c.sources, func(a, b Source) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})

	next := tree{}
	for _, src := range c.sources {
		layer, err := src.Load()
		if err != nil {
			return fmt.Errorf("configx: source %s: %w", src.Name(), err)
		}
		next.merge(layer)
	}
	c.tree = next
	return nil
}

func splitKey(key string) []string { return strings.Split(key, ".") }

func unsetEnvs(names []string) []string {
	var missing []string
	for _, name := range names {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// tree is a nested map keyed by path segment.
type tree map[string]any

func (t tree) lookup(path []string) (any, bool) {
	node := t
	last := len(path) - 1
	for i, seg := range path {
		v, ok := node[seg]
		if !ok {
			return nil, false
		}
		if i == last {
			return v, true
		}
		child, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		node = child
	}
	return nil, false
}

// put stores val at path, replacing any scalar that sits on the way.
func (t tree) put(path []string, val any) {
	node := map[string]any(t)
	for _, seg := range path[:len(path)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
	node[path[len(path)-1]] = val
}

// merge overlays src onto t. Maps merge key by key, anything else replaces.
func (t tree) merge(src map[string]any) {
	for k, v := range src {
		incoming, isMap := v.(map[string]any)
		if !isMap {
			t[k] = v
			continue
		}
		if existing, ok := t[k].(map[string]any); ok {
			tree(existing).merge(incoming)
			continue
		}
		t[k] = tree(incoming).clone()
	}
}

func (t tree) clone() map[string]any {
	out := make(map[string]any, len(t))
	for k, v := range t {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return tree(x).clone()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return v
	}
}
