package eventx

import (
	"reflect"
	"strings"
	"sync"
)

const tagKey = "eventx"

var (
	eventIface       = reflect.TypeOf((*Event)(nil)).Elem()
	cancellableIface = reflect.TypeOf((*Cancellable)(nil)).Elem()
	scopedIface      = reflect.TypeOf((*Scoped)(nil)).Elem()
	baseType         = reflect.TypeOf(Base{})
	cancellableType  = reflect.TypeOf(CancellableBase{})
)

// eventType is the static metadata of one event type, read from the struct
// tags of its embedded fields:
//
//	type ChatMessage struct {
//		Message `eventx:"delegate"`
//	}
//
// The tags describe the type they are declared on only; a type embedding
// ChatMessage does not delegate unless it says so itself.
type eventType struct {
	typ         reflect.Type
	name        string
	parent      reflect.Type
	parentIndex []int
	abstract    bool
	cancellable bool
}

var eventTypes sync.Map

// describe validates t and returns its metadata, memoized per type.
func describe(t reflect.Type) (*eventType, error) {
	if cached, ok := eventTypes.Load(t); ok {
		return cached.(*eventType), nil
	}

	info, err := inspect(t)
	if err != nil {
		return nil, err
	}
	actual, _ := eventTypes.LoadOrStore(t, info)
	return actual.(*eventType), nil
}

func inspect(t reflect.Type) (*eventType, error) {
	invalid := func(reason string) error {
		name := "<nil>"
		if t != nil {
			name = t.String()
		}
		return ErrorRegistry.New(ErrInvalidEventType).
			WithDetail("type", name).
			WithDetail("reason", reason)
	}

	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, invalid("event types must be pointers to structs")
	}
	if !t.Implements(eventIface) {
		return nil, invalid("type does not embed eventx.Base")
	}
	if t.Elem() == baseType || t.Elem() == cancellableType {
		return nil, invalid("the base types cannot be dispatched directly")
	}

	info := &eventType{
		typ:         t,
		name:        nameOf(t),
		cancellable: t.Implements(cancellableIface),
	}

	embedsBase := false
	elem := t.Elem()
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)
		if !field.Anonymous {
			continue
		}
		if field.Type == baseType || field.Type == cancellableType {
			embedsBase = true
		}

		tag, ok := field.Tag.Lookup(tagKey)
		if !ok {
			continue
		}
		for _, opt := range strings.Split(tag, ",") {
			switch strings.TrimSpace(opt) {
			case "":
			case "abstract":
				info.abstract = true
			case "delegate":
				if info.parent != nil {
					return nil, invalid("more than one delegate field")
				}
				if field.Type.Kind() != reflect.Struct {
					return nil, invalid("delegate field " + field.Name + " must embed the event struct by value")
				}
				if field.Type == baseType || field.Type == cancellableType {
					return nil, invalid("cannot delegate to " + field.Type.Name())
				}
				if !field.IsExported() {
					return nil, invalid("delegate field " + field.Name + " must be an exported type")
				}
				parent := reflect.PointerTo(field.Type)
				if !parent.Implements(eventIface) {
					return nil, invalid("delegate field " + field.Name + " is not an event")
				}
				info.parent = parent
				info.parentIndex = field.Index
			default:
				return nil, invalid("unknown tag option " + opt)
			}
		}
	}

	if info.parent != nil && embedsBase {
		return nil, invalid("a delegating event must not embed eventx.Base again")
	}

	return info, nil
}

// scopeOfType returns the scope a type declares through Scoped, or nil.
func scopeOfType(t reflect.Type) Scope {
	if !t.Implements(scopedIface) {
		return nil
	}
	zero := reflect.New(t.Elem()).Interface().(Scoped)
	return zero.EventScope()
}
