package eventx

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Abraxas-365/eventcraft/errx"
)

// ErrorRegistry holds every failure eventx can report.
var ErrorRegistry = errx.NewRegistry("EVENTX")

var (
	ErrRegistrationFailed = ErrorRegistry.Register("REGISTRATION_FAILED", errx.TypeRegistration, http.StatusBadRequest, "failed to bind event handler")
	ErrOwnershipMismatch  = ErrorRegistry.Register("OWNERSHIP_MISMATCH", errx.TypeRegistration, http.StatusConflict, "callback belongs to another holder")

	ErrInvocationFailed = ErrorRegistry.Register("INVOCATION_FAILED", errx.TypeInvocation, http.StatusInternalServerError, "event handler returned an error")
	ErrHandlerPanic     = ErrorRegistry.Register("HANDLER_PANIC", errx.TypeInvocation, http.StatusInternalServerError, "event handler panicked")
	ErrDispatchFailed   = ErrorRegistry.Register("DISPATCH_FAILED", errx.TypeInvocation, http.StatusInternalServerError, "one or more event handlers failed")

	ErrAccessDenied  = ErrorRegistry.Register("ACCESS_DENIED", errx.TypeAccess, http.StatusForbidden, "dispatcher is not allowed to perform this operation")
	ErrAlreadyActive = ErrorRegistry.Register("ALREADY_ACTIVE", errx.TypeAccess, http.StatusConflict, "another dispatcher is already active")

	ErrResolutionFailed = ErrorRegistry.Register("RESOLUTION_FAILED", errx.TypeResolution, http.StatusGone, "event holder is no longer resolvable")
	ErrScopeClosed      = ErrorRegistry.Register("SCOPE_CLOSED", errx.TypeResolution, http.StatusGone, "scope has been closed")

	ErrInvalidScope     = ErrorRegistry.Register("INVALID_SCOPE", errx.TypeValidation, http.StatusBadRequest, "scope cannot hold registries")
	ErrInvalidEventType = ErrorRegistry.Register("INVALID_EVENT_TYPE", errx.TypeValidation, http.StatusBadRequest, "type is not a valid event type")
	ErrAbstractEvent    = ErrorRegistry.Register("ABSTRACT_EVENT", errx.TypeValidation, http.StatusBadRequest, "abstract events cannot be dispatched")
	ErrNotCancellable   = ErrorRegistry.Register("NOT_CANCELLABLE", errx.TypeValidation, http.StatusBadRequest, "event is not cancellable")
	ErrTypeMismatch     = ErrorRegistry.Register("TYPE_MISMATCH", errx.TypeValidation, http.StatusBadRequest, "event does not match the holder type")
	ErrNilEvent         = ErrorRegistry.Register("NIL_EVENT", errx.TypeValidation, http.StatusBadRequest, "event is nil")
)

// invocationError wraps a handler failure with the event and callback that produced it.
func invocationError(e Event, cb *Callback, cause error) *errx.Error {
	return ErrorRegistry.NewWithCause(ErrInvocationFailed, cause).
		WithDetail("event", typeName(e)).
		WithDetail("handler", cb.Key())
}

// PanicValue returns the value a handler panicked with, if err is a HANDLER_PANIC.
func PanicValue(err error) (any, bool) {
	xerr, ok := errx.Find(err, ErrHandlerPanic)
	if !ok {
		return nil, false
	}
	v, ok := xerr.Detail("panic")
	return v, ok
}

func panicError(e Event, cb *Callback, r any) *errx.Error {
	return ErrorRegistry.NewWithMessage(ErrHandlerPanic, fmt.Sprintf("event handler panicked: %v", r)).
		WithDetail("event", typeName(e)).
		WithDetail("handler", cb.Key()).
		WithDetail("panic", r).
		WithDetail("stack", string(debug.Stack()))
}
