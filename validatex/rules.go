package validatex

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ValidationFunc defines a function that validates a value
type ValidationFunc func(value any, param string) bool

// builtinValidationFuncs is a map of built-in validation functions
var builtinValidationFuncs = map[string]ValidationFunc{
	"required": validateRequired,
	"min":      validateMin,
	"max":      validateMax,
	"oneof":    validateOneOf,
	"regex":    validateRegex,
	"prefix":   validatePrefix,
}

var (
	customMu              sync.RWMutex
	customValidationFuncs = map[string]ValidationFunc{}
)

// RegisterValidationFunc registers a custom validation function
func RegisterValidationFunc(name string, fn ValidationFunc) {
	customMu.Lock()
	customValidationFuncs[name] = fn
	customMu.Unlock()
}

// getValidationFunc returns a validation function by name
func getValidationFunc(name string) (ValidationFunc, bool) {
	customMu.RLock()
	fn, ok := customValidationFuncs[name]
	customMu.RUnlock()
	if ok {
		return fn, true
	}

	fn, ok = builtinValidationFuncs[name]
	return fn, ok
}

func validateRequired(value any, _ string) bool {
	return !isZero(value)
}

// validateMin checks numbers against the bound, strings and collections by length
func validateMin(value any, param string) bool {
	bound, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return false
	}
	n, ok := measure(value)
	return ok && n >= bound
}

func validateMax(value any, param string) bool {
	bound, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return false
	}
	n, ok := measure(value)
	return ok && n <= bound
}

// validateOneOf checks the value against space separated options
func validateOneOf(value any, param string) bool {
	str, ok := value.(string)
	if !ok {
		return false
	}
	for _, opt := range strings.Fields(param) {
		if str == opt {
			return true
		}
	}
	return false
}

var (
	regexMu    sync.Mutex
	regexCache = map[string]*regexp.Regexp{}
)

func validateRegex(value any, param string) bool {
	str, ok := value.(string)
	if !ok {
		return false
	}
	regexMu.Lock()
	re, ok := regexCache[param]
	if !ok {
		var err error
		if re, err = regexp.Compile(param); err != nil {
			regexMu.Unlock()
			return false
		}
		regexCache[param] = re
	}
	regexMu.Unlock()
	return re.MatchString(str)
}

func validatePrefix(value any, param string) bool {
	str, ok := value.(string)
	return ok && strings.HasPrefix(str, param)
}

// measure returns the number a bound applies to
func measure(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return float64(v.Len()), true
	default:
		return 0, false
	}
}
