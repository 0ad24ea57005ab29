package configx

import (
	"strconv"
	"strings"
	"time"
)

// Value is a single lookup result. Conversions never fail; the As*Default
// forms return def when the raw value is missing or cannot be converted.
type Value struct {
	key string
	raw any
}

func newValue(key string, raw any) Value { return Value{key: key, raw: raw} }

// Key is the dotted key the value was looked up with.
func (v Value) Key() string { return v.key }

func (v Value) IsSet() bool { return v.raw != nil }

func (v Value) AsString() string { return v.AsStringDefault("") }

func (v Value) AsStringDefault(def string) string {
	switch x := v.raw.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return def
}

func (v Value) AsInt() int { return v.AsIntDefault(0) }

func (v Value) AsIntDefault(def int) int {
	switch x := v.raw.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case uint64:
		return int(x)
	case float64:
		return int(x)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n
		}
	}
	return def
}

func (v Value) AsBool() bool { return v.AsBoolDefault(false) }

// AsBoolDefault also understands yes/no, on/off and 1/0 strings.
func (v Value) AsBoolDefault(def bool) bool {
	switch x := v.raw.(type) {
	case bool:
		return x
	case int:
		return x != 0
	case string:
		if b, ok := boolWords[strings.ToLower(strings.TrimSpace(x))]; ok {
			return b
		}
	}
	return def
}

var boolWords = map[string]bool{
	"true": true, "yes": true, "on": true, "1": true,
	"false": false, "no": false, "off": false, "0": false,
}

// AsDurationDefault parses strings like "150ms"; bare integers are milliseconds.
func (v Value) AsDurationDefault(def time.Duration) time.Duration {
	switch x := v.raw.(type) {
	case time.Duration:
		return x
	case int:
		return time.Duration(x) * time.Millisecond
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(x)); err == nil {
			return d
		}
	}
	return def
}

// AsStringSlice splits strings on commas and trims each item.
func (v Value) AsStringSlice() []string {
	var items []string
	switch x := v.raw.(type) {
	case []string:
		items = append(items, x...)
	case []any:
		for _, item := range x {
			items = append(items, newValue(v.key, item).AsString())
		}
	case string:
		if x == "" {
			return nil
		}
		for item := range strings.SplitSeq(x, ",") {
			items = append(items, strings.TrimSpace(item))
		}
	}
	return items
}
