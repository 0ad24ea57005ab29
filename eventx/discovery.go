package eventx

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"unicode"
)

// Spec describes one handler before it is bound to a holder.
type Spec struct {
	eventType       reflect.Type
	key             string
	fn              func(Event) error
	priority        *int
	ignoreCancelled bool
}

// EventType returns the event type the handler accepts.
func (s Spec) EventType() reflect.Type { return s.eventType }

// Key names the invocable.
func (s Spec) Key() string { return s.key }

// HandlerOption tunes a Spec.
type HandlerOption func(*Spec)

// Priority sets the handler priority; higher runs earlier.
func Priority(p int) HandlerOption {
	return func(s *Spec) { s.priority = &p }
}

// IgnoreCancelled makes the handler run for cancelled occurrences too.
func IgnoreCancelled() HandlerOption {
	return func(s *Spec) { s.ignoreCancelled = true }
}

// WithKey names the invocable explicitly. Two handlers of the same target
// with the same key are the same handler.
func WithKey(key string) HandlerOption {
	return func(s *Spec) { s.key = key }
}

// On builds a handler spec for events of type T.
//
//	eventx.On(func(e *PlayerJoined) { ... }, eventx.Priority(500))
//
// The returned Spec is keyed by the function's name unless WithKey is given.
// Closures created from the same function literal, for example inside a loop,
// share that name and are therefore equal: registering a second one is a
// no-op. Give each of them a distinct WithKey.
func On[T Event](fn func(T), opts ...HandlerOption) Spec {
	var wrapped func(Event) error
	if fn != nil {
		wrapped = func(e Event) error {
			fn(e.(T))
			return nil
		}
	}
	return newSpec[T](fn, wrapped, opts)
}

// OnErr builds a handler spec for events of type T whose failures are
// reported to the dispatcher's error hook. Keys follow the same rules as On.
func OnErr[T Event](fn func(T) error, opts ...HandlerOption) Spec {
	var wrapped func(Event) error
	if fn != nil {
		wrapped = func(e Event) error { return fn(e.(T)) }
	}
	return newSpec[T](fn, wrapped, opts)
}

func newSpec[T Event](fn any, wrapped func(Event) error, opts []HandlerOption) Spec {
	s := Spec{eventType: reflect.TypeFor[T](), fn: wrapped, key: funcName(fn)}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return "<nil>"
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return "<unknown>"
}

// HandlerSet is implemented by handlers that list their callbacks explicitly
// instead of relying on method discovery.
type HandlerSet interface {
	EventHandlers() []Spec
}

// HandlerSetFunc adapts a function to HandlerSet.
type HandlerSetFunc func() []Spec

// EventHandlers implements HandlerSet.
func (f HandlerSetFunc) EventHandlers() []Spec { return f() }

// HandlerTags is implemented by handlers that tune discovered methods, keyed
// by method name:
//
//	func (l *Listener) HandlerTags() map[string]string {
//		return map[string]string{"OnJoin": "priority=999,ignoreCancelled"}
//	}
type HandlerTags interface {
	HandlerTags() map[string]string
}

// Candidate is one handler found by a Discoverer. Err is set when a method
// looks like a handler but cannot be bound.
type Candidate struct {
	Spec   Spec
	Method string
	Err    error
}

// Discoverer finds the handlers of an object.
type Discoverer interface {
	Discover(handler any, invoker Invoker) ([]Candidate, error)
}

// MethodDiscoverer uses HandlerSet when the handler implements it, and
// otherwise treats every exported method named On<Name> that takes a single
// event pointer as a handler. Such methods must return nothing or an error.
type MethodDiscoverer struct{}

// Discover implements Discoverer.
func (MethodDiscoverer) Discover(handler any, invoker Invoker) ([]Candidate, error) {
	if set, ok := handler.(HandlerSet); ok {
		specs := set.EventHandlers()
		out := make([]Candidate, 0, len(specs))
		for _, s := range specs {
			out = append(out, Candidate{Spec: s, Method: s.key})
		}
		return out, nil
	}

	var tags map[string]string
	if t, ok := handler.(HandlerTags); ok {
		tags = t.HandlerTags()
	}

	recv := reflect.ValueOf(handler)
	typ := recv.Type()
	out := make([]Candidate, 0, typ.NumMethod())
	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		if !isHandlerName(m.Name) || m.Type.NumIn() != 2 || !m.Type.In(1).Implements(eventIface) {
			continue
		}
		out = append(out, bindMethod(recv, m, tags[m.Name], invoker))
	}
	return out, nil
}

func bindMethod(recv reflect.Value, m reflect.Method, tag string, invoker Invoker) Candidate {
	key := recv.Type().String() + "." + m.Name
	c := Candidate{Method: key}

	fail := func(reason string, cause error) Candidate {
		err := ErrorRegistry.NewWithMessage(ErrRegistrationFailed, "failed to bind method "+key).
			WithDetail("method", key).
			WithDetail("reason", reason)
		if cause != nil {
			err.WithCause(cause)
		}
		c.Err = err
		return c
	}

	if _, err := describe(m.Type.In(1)); err != nil {
		return fail("parameter is not a valid event type", err)
	}
	if !validReturns(m.Type) {
		return fail("handler must return nothing or error", nil)
	}

	fn, err := invoker.Bind(recv, m)
	if err != nil {
		return fail("invoker refused method", err)
	}

	c.Spec = Spec{eventType: m.Type.In(1), key: key, fn: fn}
	if err := applyTag(&c.Spec, tag); err != nil {
		return fail("invalid handler tag", err)
	}
	return c
}

var errorIface = reflect.TypeOf((*error)(nil)).Elem()

func validReturns(ft reflect.Type) bool {
	switch ft.NumOut() {
	case 0:
		return true
	case 1:
		return ft.Out(0) == errorIface
	default:
		return false
	}
}

func isHandlerName(name string) bool {
	rest, ok := strings.CutPrefix(name, "On")
	if !ok || rest == "" {
		return false
	}
	r := []rune(rest)[0]
	return unicode.IsUpper(r)
}

// applyTag parses "priority=<n>,ignoreCancelled" into spec.
func applyTag(spec *Spec, tag string) error {
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, hasVal := strings.Cut(part, "=")
		switch strings.TrimSpace(name) {
		case "priority":
			p, err := strconv.Atoi(strings.TrimSpace(val))
			if !hasVal || err != nil {
				return ErrorRegistry.NewWithMessage(ErrRegistrationFailed, "invalid priority "+strconv.Quote(val))
			}
			spec.priority = &p
		case "ignoreCancelled":
			spec.ignoreCancelled = !hasVal || strings.TrimSpace(val) == "true"
		default:
			return ErrorRegistry.NewWithMessage(ErrRegistrationFailed, "unknown handler tag "+strconv.Quote(name))
		}
	}
	return nil
}
