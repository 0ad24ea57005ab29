package errx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code represents a unique error code for each kind of failure
type Code string

// Type represents the general category of the error
type Type string

const (
	TypeRegistration Type = "REGISTRATION" // Handler discovery and registration
	TypeInvocation   Type = "INVOCATION"   // Handler execution failures
	TypeAccess       Type = "ACCESS"       // Privileged operation refused
	TypeResolution   Type = "RESOLUTION"   // Registry lookup failures
	TypeValidation   Type = "VALIDATION"
	TypeUnavailable  Type = "UNAVAILABLE" // Backing store unreachable
	TypeInternal     Type = "INTERNAL"
)

// Error represents a standardized error
type Error struct {
	Code       Code           `json:"code"`
	Type       Type           `json:"type"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	cause      error
	errs       []error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Type, e.Code, e.Message)
	if len(e.errs) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%s (%d failures: %s)", msg, len(e.errs), strings.Join(parts, "; "))
}

// Print renders an error with its details in a stable order, for diagnostics
func Print(e error) string {
	if e == nil {
		return "nil"
	}

	var xerr *Error
	if !errors.As(e, &xerr) {
		return fmt.Sprintf("Error: %s", e.Error())
	}

	if len(xerr.Details) == 0 {
		return fmt.Sprintf("Error: %s", xerr.Error())
	}

	keys := make([]string, 0, len(xerr.Details))
	for key := range xerr.Details {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	details := make([]string, 0, len(keys))
	for _, key := range keys {
		details = append(details, fmt.Sprintf("%s: %v", key, xerr.Details[key]))
	}
	return fmt.Sprintf("Error: %s, Details: {%s}", xerr.Error(), strings.Join(details, ", "))
}

// Unwrap exposes the cause and, for aggregates, every collected failure
func (e *Error) Unwrap() []error {
	out := make([]error, 0, len(e.errs)+1)
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return append(out, e.errs...)
}

// Cause returns the wrapped cause, if any
func (e *Error) Cause() error {
	return e.cause
}

// Errors returns the failures collected by an aggregate error
func (e *Error) Errors() []error {
	return append([]error(nil), e.errs...)
}

// WithDetails adds details to the error and returns the same error
func (e *Error) WithDetails(details map[string]any) *Error {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// WithDetail adds a single detail to the error and returns the same error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause wraps another error as the cause of this error
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// Detail returns a single detail value
func (e *Error) Detail(key string) (any, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// ToHTTP writes the error to an HTTP response writer
func (e *Error) ToHTTP(w http.ResponseWriter) {
	status := e.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}

// Is matches errors by code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsCode reports whether err, or any error it wraps or aggregates, carries code
func IsCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}

// IsType reports whether err, or any error it wraps or aggregates, has errType
func IsType(err error, errType Type) bool {
	found := false
	walk(err, func(e *Error) bool {
		found = e.Type == errType
		return found
	})
	return found
}

// Find returns the first error in the tree carrying code
func Find(err error, code Code) (*Error, bool) {
	var hit *Error
	walk(err, func(e *Error) bool {
		if e.Code == code {
			hit = e
			return true
		}
		return false
	})
	return hit, hit != nil
}

func walk(err error, fn func(*Error) bool) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && fn(e) {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if walk(inner, fn) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), fn)
	}
	return false
}

// Registry helps manage error definitions across packages
type Registry struct {
	prefix    string
	errorDefs map[Code]*Error
}

// NewRegistry creates a new Registry with a prefix
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix:    prefix,
		errorDefs: make(map[Code]*Error),
	}
}

// Register adds a new error definition to the registry
func (r *Registry) Register(code Code, errType Type, httpStatus int, message string) Code {
	fullCode := Code(fmt.Sprintf("%s_%s", r.prefix, code))
	r.errorDefs[fullCode] = &Error{
		Code:       fullCode,
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
	return fullCode
}

// New creates a new instance of a registered error
func (r *Registry) New(code Code) *Error {
	if def, ok := r.errorDefs[code]; ok {
		return &Error{
			Code:       def.Code,
			Type:       def.Type,
			Message:    def.Message,
			HTTPStatus: def.HTTPStatus,
		}
	}
	return &Error{
		Code:       "UNKNOWN_ERROR",
		Type:       TypeInternal,
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewWithMessage creates a new instance of a registered error with a custom message
func (r *Registry) NewWithMessage(code Code, message string) *Error {
	err := r.New(code)
	err.Message = message
	return err
}

// NewWithCause creates a new instance of a registered error with an underlying cause
func (r *Registry) NewWithCause(code Code, cause error) *Error {
	err := r.New(code)
	err.cause = cause
	return err
}

// NewAggregate collects several failures under one registered code.
// Nil entries are dropped; it returns nil when nothing is left.
func (r *Registry) NewAggregate(code Code, errs []error) *Error {
	kept := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	err := r.New(code)
	err.errs = kept
	return err
}

// Codes lists every code registered so far, sorted
func (r *Registry) Codes() []Code {
	codes := make([]Code, 0, len(r.errorDefs))
	for code := range r.errorDefs {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Wrap wraps a standard error with contextual information
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}

	var xerr *Error
	if errors.As(err, &xerr) {
		return &Error{
			Code:       xerr.Code,
			Type:       errType,
			Message:    message,
			Details:    xerr.Details,
			HTTPStatus: xerr.HTTPStatus,
			cause:      err,
		}
	}

	return &Error{
		Code:    Code(fmt.Sprintf("%s_ERROR", errType)),
		Type:    errType,
		Message: message,
		cause:   err,
	}
}

// New creates a new Error with the given message and type
func New(message string, errType Type) *Error {
	return &Error{
		Code:    Code(fmt.Sprintf("%s_ERROR", errType)),
		Type:    errType,
		Message: message,
	}
}
