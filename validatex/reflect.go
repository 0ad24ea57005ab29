package validatex

import (
	"reflect"
	"strings"
	"sync"
)

type fieldInfo struct {
	Name  string
	Value any
	Rules []ruleInfo
}

type ruleInfo struct {
	Name  string
	Param string
}

// fieldPlan is the per-type view of one exported field: its rules, if
// tagged, and whether the walk descends into it.
type fieldPlan struct {
	index   int
	name    string
	rules   []ruleInfo
	descend bool
}

var plans sync.Map // reflect.Type -> []fieldPlan

func planFor(typ reflect.Type) []fieldPlan {
	if cached, ok := plans.Load(typ); ok {
		return cached.([]fieldPlan)
	}
	var plan []fieldPlan
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		ft := sf.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		fp := fieldPlan{index: i, name: sf.Name, descend: ft.Kind() == reflect.Struct}
		if tag := sf.Tag.Get("validatex"); tag != "-" {
			fp.rules = parseTag(tag)
		}
		if len(fp.rules) > 0 || fp.descend {
			plan = append(plan, fp)
		}
	}
	actual, _ := plans.LoadOrStore(typ, plan)
	return actual.([]fieldPlan)
}

// structFields flattens the tagged fields of val in declaration order.
// Nested structs, including non-nil pointers to them, appear with dotted names.
func structFields(val reflect.Value, prefix string) []fieldInfo {
	var out []fieldInfo
	for _, fp := range planFor(val.Type()) {
		fv := val.Field(fp.index)
		name := prefix + fp.name
		if len(fp.rules) > 0 {
			out = append(out, fieldInfo{Name: name, Value: fv.Interface(), Rules: fp.rules})
		}
		if !fp.descend {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		out = append(out, structFields(fv, name+".")...)
	}
	return out
}

// parseTag splits "required,min=1" into rules, skipping empty entries.
func parseTag(tag string) []ruleInfo {
	var rules []ruleInfo
	for part := range strings.SplitSeq(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, param, _ := strings.Cut(part, "=")
		rules = append(rules, ruleInfo{Name: name, Param: param})
	}
	return rules
}

// isZero treats nil, empty collections and zero values alike.
func isZero(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	}
	return v.IsZero()
}
