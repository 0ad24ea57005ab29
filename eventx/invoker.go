package eventx

import (
	"reflect"
	"sync"
)

// Invoker turns a discovered method into a callable handler.
type Invoker interface {
	Bind(recv reflect.Value, m reflect.Method) (func(Event) error, error)
}

// ReflectInvoker calls handlers through reflect.Value.Call.
type ReflectInvoker struct{}

// Bind implements Invoker.
func (ReflectInvoker) Bind(recv reflect.Value, m reflect.Method) (func(Event) error, error) {
	if !m.IsExported() {
		return nil, ErrorRegistry.NewWithMessage(ErrRegistrationFailed, "method "+m.Name+" is not exported")
	}
	method := recv.Method(m.Index)
	returnsErr := method.Type().NumOut() == 1

	return func(e Event) error {
		out := method.Call([]reflect.Value{reflect.ValueOf(e)})
		if !returnsErr || out[0].IsNil() {
			return nil
		}
		return out[0].Interface().(error)
	}, nil
}

type adapter func(method, recv any) func(Event) error

// FastInvoker calls handlers whose signatures were registered with Accelerate
// directly, without reflection. Other methods fall back to ReflectInvoker.
type FastInvoker struct {
	adapters sync.Map
}

// NewFastInvoker returns an empty FastInvoker.
func NewFastInvoker() *FastInvoker {
	return &FastInvoker{}
}

// Accelerate registers direct adapters for methods of receiver R taking event T,
// returning nothing or an error.
//
//	eventx.Accelerate[*Listener, *PlayerJoined](inv)
func Accelerate[R any, T Event](f *FastInvoker) {
	f.adapters.Store(reflect.TypeFor[func(R, T)](), adapter(func(method, recv any) func(Event) error {
		call, r := method.(func(R, T)), recv.(R)
		return func(e Event) error {
			call(r, e.(T))
			return nil
		}
	}))
	f.adapters.Store(reflect.TypeFor[func(R, T) error](), adapter(func(method, recv any) func(Event) error {
		call, r := method.(func(R, T) error), recv.(R)
		return func(e Event) error {
			return call(r, e.(T))
		}
	}))
}

// Accelerated reports whether m would be bound without reflection.
func (f *FastInvoker) Accelerated(m reflect.Method) bool {
	_, ok := f.adapters.Load(m.Func.Type())
	return ok
}

// Bind implements Invoker.
func (f *FastInvoker) Bind(recv reflect.Value, m reflect.Method) (func(Event) error, error) {
	if a, ok := f.adapters.Load(m.Func.Type()); ok {
		return a.(adapter)(m.Func.Interface(), recv.Interface()), nil
	}
	return ReflectInvoker{}.Bind(recv, m)
}
