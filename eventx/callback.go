package eventx

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Callback is one registered handler bound to the holder of its event type.
// Callbacks are immutable; WithLiveness returns a modified copy.
type Callback struct {
	id              uuid.UUID
	holder          *Holder
	target          any
	key             string
	invoke          func(Event) error
	ignoreCancelled bool
	priority        int
	alive           func() bool
}

func newCallback(h *Holder, target any, key string, invoke func(Event) error, priority int, ignoreCancelled bool, alive func() bool) *Callback {
	return &Callback{
		id:              uuid.New(),
		holder:          h,
		target:          target,
		key:             key,
		invoke:          invoke,
		ignoreCancelled: ignoreCancelled,
		priority:        priority,
		alive:           alive,
	}
}

// ID identifies this callback value in logs. It takes no part in equality.
func (c *Callback) ID() uuid.UUID { return c.id }

// Holder returns the holder the callback belongs to.
func (c *Callback) Holder() *Holder { return c.holder }

// Target returns the handler object, or nil for free functions.
func (c *Callback) Target() any { return c.target }

// Key names the invocable, e.g. "*app.Listener.OnJoin".
func (c *Callback) Key() string { return c.key }

// Priority returns the priority; higher runs earlier.
func (c *Callback) Priority() int { return c.priority }

// IgnoreCancelled reports whether the callback still runs for cancelled occurrences.
func (c *Callback) IgnoreCancelled() bool { return c.ignoreCancelled }

// Equal compares holder, target identity, invocable, ignoreCancelled and priority.
// The liveness predicate is not compared.
func (c *Callback) Equal(o *Callback) bool {
	if c == o {
		return true
	}
	if c == nil || o == nil {
		return false
	}
	return c.holder == o.holder &&
		c.key == o.key &&
		c.ignoreCancelled == o.ignoreCancelled &&
		c.priority == o.priority &&
		sameTarget(c.target, o.target)
}

// IsInvalid reports whether the liveness predicate exists and currently returns false.
func (c *Callback) IsInvalid() bool {
	return c.alive != nil && !c.alive()
}

// WithLiveness returns a copy of c that stays registered only while alive returns true.
// The predicate is re-evaluated when tables are rebuilt, see Dispatcher.InvalidateLiveness.
func (c *Callback) WithLiveness(alive func() bool) *Callback {
	cp := *c
	cp.id = uuid.New()
	cp.alive = alive
	return &cp
}

// IsRegistered reports whether an equal callback is pending on its holder.
func (c *Callback) IsRegistered() bool {
	return c.holder.contains(c)
}

// Invoke calls the handler for a single occurrence, outside of any dispatch.
// The occurrence must be of the holder's type or of a type delegating to it.
func (c *Callback) Invoke(e Event) error {
	if isNil(e) {
		return ErrorRegistry.New(ErrNilEvent)
	}
	path, ok := c.holder.pathFrom(reflect.TypeOf(e))
	if !ok {
		return ErrorRegistry.New(ErrTypeMismatch).
			WithDetail("event", typeName(e)).
			WithDetail("expected", c.holder.Name())
	}
	return c.call(project(e, path))
}

// call runs the handler, converting returned errors and panics into typed errors.
func (c *Callback) call(e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(e, c, r)
		}
	}()

	if cause := c.invoke(e); cause != nil {
		return invocationError(e, c, cause)
	}
	return nil
}

func (c *Callback) String() string {
	return fmt.Sprintf("%s@%s(priority=%d, ignoreCancelled=%t)", c.key, c.holder.Name(), c.priority, c.ignoreCancelled)
}

// sameTarget compares handler identity: pointers by address, other
// comparable values with ==. Non-comparable values are never the same.
func sameTarget(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.UnsafePointer, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}

// project returns the embedded event reached through path, or e itself.
func project(e Event, path []int) Event {
	if len(path) == 0 {
		return e
	}
	return reflect.ValueOf(e).Elem().FieldByIndex(path).Addr().Interface().(Event)
}
