// Package eventx provides typed, in-process event dispatch with priorities,
// cancellation, delegation across event types and isolated scopes.
//
// Events are structs embedding Base (or CancellableBase) and are dispatched
// as pointers on the calling goroutine:
//
//	type PlayerJoined struct {
//		eventx.CancellableBase
//		Name string
//	}
//
// Handlers are objects with On<Name> methods, or explicit specs:
//
//	type Greeter struct{}
//
//	func (g *Greeter) OnJoin(e *PlayerJoined) { ... }
//
//	rt, _ := eventx.NewRuntime()
//	d := rt.Active()
//	_, err := d.RegisterEvents(&Greeter{})
//	err = rt.Dispatch(&PlayerJoined{Name: "alex"})
//
// Each event type in each scope has a Holder. A holder keeps its callbacks in
// registration order and compiles them lazily into a table sorted by
// descending priority; the table is rebuilt only after a registration change
// or after Dispatcher.InvalidateLiveness.
//
// A type that embeds another event with the `eventx:"delegate"` tag also
// receives the handlers of that event:
//
//	type ChatMessage struct {
//		Message `eventx:"delegate"`
//	}
//
// Cancellation: once a handler cancels an occurrence, only callbacks
// registered with IgnoreCancelled still run.
//
// Failures of handlers, including panics, are passed to the dispatcher's
// ErrorHook and returned together as one DISPATCH_FAILED error:
//
//	if err := rt.Dispatch(e); errx.IsCode(err, eventx.ErrHandlerPanic) { ... }
//
// Only the runtime's active dispatcher (or one it granted access) may
// register or unregister handlers.
package eventx
