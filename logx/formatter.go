package logx

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// maxDepth bounds recursion through self-referencing values such as
// registries that point back at their parents.
const maxDepth = 6

// Compact renders a value on a single line, e.g. HolderInfo{Name:"x",Callbacks:2}
func Compact(v any) string {
	return formatValue(reflect.ValueOf(v), 0)
}

func formatValue(v reflect.Value, depth int) string {
	if !v.IsValid() {
		return "<nil>"
	}
	if depth > maxDepth {
		return "..."
	}

	if v.CanInterface() {
		switch val := v.Interface().(type) {
		case error:
			if v.Kind() == reflect.Ptr && v.IsNil() {
				return "nil"
			}
			return fmt.Sprintf("Error(%q)", val.Error())
		case fmt.Stringer:
			if v.Kind() != reflect.Ptr || !v.IsNil() {
				return val.String()
			}
		}
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return "nil"
		}
		return "&" + formatValue(v.Elem(), depth+1)
	case reflect.Interface:
		if v.IsNil() {
			return "<nil>"
		}
		return formatValue(v.Elem(), depth+1)
	case reflect.String:
		return fmt.Sprintf("%q", v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", v.Uint())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%g", v.Float())
	case reflect.Bool:
		return fmt.Sprintf("%t", v.Bool())
	case reflect.Slice, reflect.Array:
		return formatSlice(v, depth)
	case reflect.Map:
		return formatMap(v, depth)
	case reflect.Struct:
		return formatStruct(v, depth)
	case reflect.Func:
		if v.IsNil() {
			return "nil"
		}
		return "func"
	default:
		return fmt.Sprintf("<%s>", v.Type().String())
	}
}

func formatStruct(v reflect.Value, depth int) string {
	t := v.Type()
	name := t.Name()
	if name == "" {
		name = "struct"
	}

	parts := make([]string, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%s", field.Name, formatValue(v.Field(i), depth+1)))
	}
	return fmt.Sprintf("%s{%s}", name, strings.Join(parts, ","))
}

func formatSlice(v reflect.Value, depth int) string {
	if v.Len() == 0 {
		return "[]"
	}
	if v.Type().Elem().Kind() == reflect.Uint8 && v.Kind() == reflect.Slice {
		return fmt.Sprintf("[]byte(%q)", string(v.Bytes()))
	}

	parts := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		parts = append(parts, formatValue(v.Index(i), depth+1))
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ","))
}

func formatMap(v reflect.Value, depth int) string {
	if v.Len() == 0 {
		return "map{}"
	}

	parts := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		parts = append(parts, fmt.Sprintf("%s:%s",
			formatValue(iter.Key(), depth+1), formatValue(iter.Value(), depth+1)))
	}
	sort.Strings(parts)
	return fmt.Sprintf("map{%s}", strings.Join(parts, ","))
}
