package eventx

import "reflect"

// Event is implemented by every occurrence. Concrete events embed Base (or
// CancellableBase) and are always dispatched as pointers:
//
//	type PlayerJoined struct {
//		eventx.Base
//		Name string
//	}
type Event interface {
	IsCancelled() bool
	base() *Base
}

// Cancellable events can be cancelled by handlers.
type Cancellable interface {
	Event
	SetCancelled(cancelled bool)
	cancellable()
}

// Scoped is implemented by events (and handlers) that belong to an isolation
// scope other than the runtime default.
type Scoped interface {
	EventScope() Scope
}

// HolderProvider lets an event hand out its holder directly, skipping the
// scope table lookup. Returning nil falls back to the normal resolution.
type HolderProvider interface {
	ProvideHolder(rt *Runtime) *Holder
}

// Base carries the per-occurrence state shared by every event.
type Base struct {
	cancelled bool
	holder    *Holder
}

func (b *Base) base() *Base { return b }

// IsCancelled reports whether a handler cancelled this occurrence.
func (b *Base) IsCancelled() bool { return b.cancelled }

// CancellableBase is embedded by events that handlers may cancel.
type CancellableBase struct {
	Base
}

func (c *CancellableBase) cancellable() {}

// SetCancelled sets the cancelled flag.
func (c *CancellableBase) SetCancelled(cancelled bool) { c.cancelled = cancelled }

// Reset clears the cancelled flag so the occurrence can be dispatched again.
func (c *CancellableBase) Reset() { c.cancelled = false }

// SetCancelled cancels or un-cancels e. It fails for events that are not Cancellable.
func SetCancelled(e Event, cancelled bool) error {
	if isNil(e) {
		return ErrorRegistry.New(ErrNilEvent)
	}
	c, ok := e.(Cancellable)
	if !ok {
		return ErrorRegistry.New(ErrNotCancellable).WithDetail("event", typeName(e))
	}
	c.SetCancelled(cancelled)
	return nil
}

func isNil(e Event) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

func typeName(e Event) string {
	if e == nil {
		return "<nil>"
	}
	return nameOf(reflect.TypeOf(e))
}

func nameOf(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
