// Package validatex checks struct fields against rules declared in tags:
//
//	type Options struct {
//		Times   int    `validatex:"required,min=1"`
//		Invoker string `validatex:"oneof=reflect fast"`
//	}
//
//	if err := validatex.Validate(opts); err != nil { ... }
package validatex

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/Abraxas-365/eventcraft/errx"
)

var ErrorRegistry = errx.NewRegistry("VALIDATEX")

var (
	ErrInvalid     = ErrorRegistry.Register("INVALID", errx.TypeValidation, http.StatusBadRequest, "validation failed")
	ErrRule        = ErrorRegistry.Register("RULE_FAILED", errx.TypeValidation, http.StatusBadRequest, "field does not satisfy rule")
	ErrUnknownRule = ErrorRegistry.Register("UNKNOWN_RULE", errx.TypeInternal, http.StatusInternalServerError, "unknown validation rule")
	ErrNotStruct   = ErrorRegistry.Register("NOT_STRUCT", errx.TypeInternal, http.StatusInternalServerError, "value must be a struct")
)

// Validatable is implemented by types with checks tags cannot express.
// Validate calls it after the tag rules passed.
type Validatable interface {
	Validate() error
}

// Validate checks every tagged field of obj, a struct or pointer to struct.
// All failing rules are reported together under ErrInvalid.
func Validate(obj any) error {
	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return ErrorRegistry.New(ErrNotStruct)
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return ErrorRegistry.New(ErrNotStruct).WithDetail("kind", val.Kind().String())
	}

	var failures []error
	for _, f := range structFields(val, "") {
		for _, rule := range f.Rules {
			fn, ok := getValidationFunc(rule.Name)
			if !ok {
				return ErrorRegistry.New(ErrUnknownRule).
					WithDetail("field", f.Name).
					WithDetail("rule", rule.Name)
			}
			if fn(f.Value, rule.Param) {
				continue
			}
			failures = append(failures, ErrorRegistry.NewWithMessage(ErrRule, describe(f.Name, rule)).
				WithDetail("field", f.Name).
				WithDetail("rule", rule.Name))
			// Later rules usually depend on the earlier ones.
			break
		}
	}
	if len(failures) > 0 {
		return ErrorRegistry.NewAggregate(ErrInvalid, failures)
	}

	if v, ok := obj.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

func describe(field string, rule ruleInfo) string {
	var b strings.Builder
	b.WriteString(field)
	b.WriteString(" must satisfy ")
	b.WriteString(rule.Name)
	if rule.Param != "" {
		b.WriteString("=")
		b.WriteString(rule.Param)
	}
	return b.String()
}
