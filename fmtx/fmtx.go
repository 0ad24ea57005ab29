// Package fmtx renders command line reports: aligned tables built from
// struct slices, and timers.
package fmtx

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
)

// TableOptions controls table rendering
type TableOptions struct {
	MaxColumnWidth int    // Truncate cells longer than this (0 = 40)
	UseColors      bool   // Bold header
	Separator      string // Column separator (default " | ")
}

// Table renders a slice of structs with default options
func Table(slice any) string {
	return TableWithOptions(slice, TableOptions{})
}

func TablePrint(slice any) {
	fmt.Println(Table(slice))
}

// TableWithOptions renders a slice of structs, one row per element and one
// column per exported field. A `fmtx:"name"` tag renames a column and
// `fmtx:"-"` hides it.
func TableWithOptions(slice any, opts TableOptions) string {
	v := reflect.ValueOf(slice)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return "Error: not a slice or array"
	}

	t := v.Type().Elem()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return "Error: slice elements must be structs"
	}

	if opts.MaxColumnWidth == 0 {
		opts.MaxColumnWidth = 40
	}
	if opts.Separator == "" {
		opts.Separator = " | "
	}

	var fields []int
	var headers []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("fmtx"); ok {
			if tag == "-" {
				continue
			}
			name = tag
		}
		fields = append(fields, i)
		headers = append(headers, name)
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}

	rows := make([][]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		if item.Kind() == reflect.Ptr {
			if item.IsNil() {
				continue
			}
			item = item.Elem()
		}
		row := make([]string, len(fields))
		for j, idx := range fields {
			cell := formatCell(item.Field(idx))
			if len(cell) > opts.MaxColumnWidth {
				cell = "..." + cell[len(cell)-opts.MaxColumnWidth+3:]
			}
			row[j] = cell
			widths[j] = max(widths[j], utf8.RuneCountInString(cell))
		}
		rows = append(rows, row)
	}

	var b strings.Builder
	header := color.New(color.Bold, color.FgBlue)
	for i, h := range headers {
		if i > 0 {
			b.WriteString(opts.Separator)
		}
		cell := fmt.Sprintf("%-*s", widths[i], h)
		if opts.UseColors {
			cell = header.Sprint(cell)
		}
		b.WriteString(cell)
	}
	b.WriteString("\n")

	for i, w := range widths {
		if i > 0 {
			b.WriteString(strings.Repeat("-", len(opts.Separator)))
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString(opts.Separator)
			}
			b.WriteString(fmt.Sprintf("%-*s", widths[i], cell))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCell(v reflect.Value) string {
	switch x := v.Interface().(type) {
	case time.Duration:
		return FormatDuration(x)
	case fmt.Stringer:
		return x.String()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("[%d]", v.Len())
	case reflect.Map:
		return fmt.Sprintf("{%d}", v.Len())
	}
	return fmt.Sprintf("%v", v.Interface())
}

// FormatDuration prints d with three significant decimals in the largest
// unit below it, e.g. 1.234µs or 12.500ms.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.3fµs", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}

// Timer measures a named span
type Timer struct {
	start time.Time
	name  string
}

func StartTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t *Timer) Stop() string {
	return fmt.Sprintf("%s took %s", t.name, FormatDuration(t.Elapsed()))
}
