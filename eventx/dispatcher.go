package eventx

import (
	"cmp"
	"reflect"
	"slices"
	"sync/atomic"
)

// Comparator orders callbacks in a table; negative means a runs before b.
type Comparator func(a, b *Callback) int

// ByPriority runs higher priorities first.
func ByPriority(a, b *Callback) int {
	return cmp.Compare(b.priority, a.priority)
}

// ErrorHook receives every handler failure of a dispatch. The returned error,
// if any, is collected into the error Dispatch returns.
type ErrorHook func(e Event, cb *Callback, err error) error

// Propagate is the default hook: every failure reaches the caller.
func Propagate(_ Event, _ *Callback, err error) error { return err }

// SwallowErrors logs failures and lets the dispatch succeed.
func SwallowErrors(logger Logger) ErrorHook {
	return func(e Event, cb *Callback, err error) error {
		logger.Error("handler %s failed for %s: %v", cb.Key(), typeName(e), err)
		return nil
	}
}

// UnsafeGuard decides whether an escape hatch (Grant, ForceActivate) may run.
type UnsafeGuard func(op string) error

// Dispatcher is the facade handlers are registered through. Only the
// runtime's active dispatcher, or one it granted access, may mutate holders;
// any dispatcher may dispatch.
type Dispatcher struct {
	rt          *Runtime
	name        string
	comparator  Comparator
	onError     ErrorHook
	guard       UnsafeGuard
	discoverer  Discoverer
	invoker     Invoker
	skipInvalid bool
	granted     atomic.Bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithComparator replaces the priority order. It applies while the dispatcher is active.
func WithComparator(c Comparator) DispatcherOption {
	return func(d *Dispatcher) {
		if c != nil {
			d.comparator = c
		}
	}
}

// WithErrorHook replaces Propagate.
func WithErrorHook(hook ErrorHook) DispatcherOption {
	return func(d *Dispatcher) {
		if hook != nil {
			d.onError = hook
		}
	}
}

// WithUnsafeGuard installs a guard consulted before escape hatches run.
func WithUnsafeGuard(guard UnsafeGuard) DispatcherOption {
	return func(d *Dispatcher) { d.guard = guard }
}

// WithDiscoverer replaces the handler discovery strategy.
func WithDiscoverer(disc Discoverer) DispatcherOption {
	return func(d *Dispatcher) {
		if disc != nil {
			d.discoverer = disc
		}
	}
}

// WithInvoker replaces the method binding strategy.
func WithInvoker(inv Invoker) DispatcherOption {
	return func(d *Dispatcher) {
		if inv != nil {
			d.invoker = inv
		}
	}
}

// WithSkipInvalid sets whether handler methods that cannot be bound are
// skipped instead of failing the registration.
func WithSkipInvalid(skip bool) DispatcherOption {
	return func(d *Dispatcher) { d.skipInvalid = skip }
}

func newDispatcher(rt *Runtime, name string) *Dispatcher {
	return &Dispatcher{
		rt:         rt,
		name:       name,
		comparator: ByPriority,
		onError:    Propagate,
		discoverer: MethodDiscoverer{},
		invoker:    ReflectInvoker{},
	}
}

// Name returns the dispatcher name.
func (d *Dispatcher) Name() string { return d.name }

// Runtime returns the runtime the dispatcher belongs to.
func (d *Dispatcher) Runtime() *Runtime { return d.rt }

// IsActive reports whether d is the runtime's active dispatcher.
func (d *Dispatcher) IsActive() bool { return d.rt.active.Load() == d }

// HasAccess reports whether d may perform privileged operations.
func (d *Dispatcher) HasAccess() bool { return d.IsActive() || d.granted.Load() }

func (d *Dispatcher) ensureAccess(op string) error {
	if d.HasAccess() {
		return nil
	}
	d.rt.metrics.IncrementCounter(MetricAccessDenied, map[string]string{"operation": op})
	d.rt.logger.Warn("dispatcher %s denied %s: not active and not granted", d.name, op)
	return ErrorRegistry.New(ErrAccessDenied).
		WithDetail("operation", op).
		WithDetail("dispatcher", d.name)
}

func (d *Dispatcher) checkUnsafe(op string) error {
	if d.guard == nil {
		return nil
	}
	if err := d.guard(op); err != nil {
		return ErrorRegistry.NewWithCause(ErrAccessDenied, err).
			WithDetail("operation", op).
			WithDetail("dispatcher", d.name)
	}
	return nil
}

// Grant lets other perform privileged operations without being active.
func (d *Dispatcher) Grant(other *Dispatcher) error {
	if err := d.ensureAccess("Grant"); err != nil {
		return err
	}
	if err := d.checkUnsafe("Grant"); err != nil {
		return err
	}
	if other == nil || other.rt != d.rt {
		return ErrorRegistry.New(ErrAccessDenied).
			WithDetail("operation", "Grant").
			WithDetail("reason", "dispatcher belongs to another runtime")
	}
	other.granted.Store(true)
	d.rt.logger.Warn("dispatcher %s granted privileged access to %s", d.name, other.name)
	return nil
}

// Dispatch delivers e with this dispatcher's error hook. Ordering always
// follows the active dispatcher's comparator.
func (d *Dispatcher) Dispatch(e Event) error {
	return d.rt.dispatch(e, d.onError)
}

// InvalidateLiveness makes every table rebuild before its next use, which
// re-evaluates all liveness predicates. It does not walk any holder.
func (d *Dispatcher) InvalidateLiveness() error {
	if err := d.ensureAccess("InvalidateLiveness"); err != nil {
		return err
	}
	d.rt.InvalidateLiveness()
	return nil
}

// RegisterOption tunes one RegisterEvents call.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	alive       func() bool
	skipInvalid *bool
	scope       Scope
}

// WhileAlive attaches a liveness predicate to every discovered callback.
func WhileAlive(alive func() bool) RegisterOption {
	return func(o *registerOptions) { o.alive = alive }
}

// SkipInvalid overrides the dispatcher's discovery mode for one call.
func SkipInvalid(skip bool) RegisterOption {
	return func(o *registerOptions) { o.skipInvalid = &skip }
}

// InScope registers into scope regardless of what the handler or the event
// types declare.
func InScope(scope Scope) RegisterOption {
	return func(o *registerOptions) { o.scope = scope }
}

// NewCallback binds fn as a handler of eventType for target.
func (d *Dispatcher) NewCallback(target any, eventType reflect.Type, fn func(Event) error, opts ...HandlerOption) (*Callback, error) {
	if err := d.ensureAccess("NewCallback"); err != nil {
		return nil, err
	}
	spec := Spec{eventType: eventType, fn: fn}
	for _, opt := range opts {
		opt(&spec)
	}
	if spec.key == "" {
		spec.key = funcName(fn)
	}
	return d.bind(target, spec, registerOptions{})
}

// Callbacks discovers the handlers of handler without registering them.
func (d *Dispatcher) Callbacks(handler any, opts ...RegisterOption) ([]*Callback, error) {
	if err := d.ensureAccess("Callbacks"); err != nil {
		return nil, err
	}
	return d.discover(handler, applyRegisterOptions(opts))
}

func applyRegisterOptions(opts []RegisterOption) registerOptions {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (d *Dispatcher) discover(handler any, o registerOptions) ([]*Callback, error) {
	if handler == nil {
		return nil, ErrorRegistry.NewWithMessage(ErrRegistrationFailed, "handler is nil")
	}
	skip := d.skipInvalid
	if o.skipInvalid != nil {
		skip = *o.skipInvalid
	}

	candidates, err := d.discoverer.Discover(handler, d.invoker)
	if err != nil {
		return nil, err
	}

	callbacks := make([]*Callback, 0, len(candidates))
	for _, c := range candidates {
		if c.Err != nil {
			if skip {
				d.rt.logger.Debug("skipping %s: %v", c.Method, c.Err)
				continue
			}
			return nil, c.Err
		}
		cb, err := d.bind(handler, c.Spec, o)
		if err != nil {
			if skip {
				d.rt.logger.Debug("skipping %s: %v", c.Method, err)
				continue
			}
			return nil, err
		}
		callbacks = append(callbacks, cb)
	}
	return callbacks, nil
}

// bind resolves the holder for spec and builds the callback.
func (d *Dispatcher) bind(target any, spec Spec, o registerOptions) (*Callback, error) {
	if spec.fn == nil {
		return nil, ErrorRegistry.NewWithMessage(ErrRegistrationFailed, "handler function is nil").
			WithDetail("handler", spec.key)
	}

	scope := o.scope
	if scope == nil && spec.eventType != nil && spec.eventType.Kind() == reflect.Ptr {
		scope = scopeOfType(spec.eventType)
	}
	if scope == nil {
		if s, ok := target.(Scoped); ok {
			scope = s.EventScope()
		}
	}

	h, err := d.rt.HolderOf(scope, spec.eventType)
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrRegistrationFailed, err).
			WithDetail("handler", spec.key)
	}

	priority := d.rt.config.DefaultPriority
	if spec.priority != nil {
		priority = *spec.priority
	}
	return newCallback(h, target, spec.key, spec.fn, priority, spec.ignoreCancelled, o.alive), nil
}

// RegisterEvents discovers and registers every handler of handler. Either all
// discovered callbacks are registered or none is. It returns how many were
// newly added; callbacks equal to pending ones are not counted.
func (d *Dispatcher) RegisterEvents(handler any, opts ...RegisterOption) (int, error) {
	if err := d.ensureAccess("RegisterEvents"); err != nil {
		return 0, err
	}
	callbacks, err := d.discover(handler, applyRegisterOptions(opts))
	if err != nil {
		return 0, err
	}
	added, err := d.registerAll(callbacks)
	if err != nil {
		return 0, err
	}
	d.rt.logger.Debug("registered %d handlers of %T", len(added), handler)
	return len(added), nil
}

// RegisterFuncs registers free function handlers built with On and OnErr.
// The returned callbacks can be passed to UnregisterCallback.
func (d *Dispatcher) RegisterFuncs(specs ...Spec) ([]*Callback, error) {
	if err := d.ensureAccess("RegisterFuncs"); err != nil {
		return nil, err
	}
	callbacks := make([]*Callback, 0, len(specs))
	for _, spec := range specs {
		cb, err := d.bind(nil, spec, registerOptions{})
		if err != nil {
			return nil, err
		}
		callbacks = append(callbacks, cb)
	}
	if _, err := d.registerAll(callbacks); err != nil {
		return nil, err
	}
	return callbacks, nil
}

func (d *Dispatcher) registerAll(callbacks []*Callback) ([]*Callback, error) {
	added := make([]*Callback, 0, len(callbacks))
	for _, cb := range callbacks {
		ok, err := cb.holder.register(cb)
		if err != nil {
			for _, prev := range added {
				prev.holder.unregister(prev)
			}
			return nil, err
		}
		if ok {
			added = append(added, cb)
		}
	}
	return added, nil
}

// RegisterCallback registers a single callback. It returns false when an
// equal callback is pending or the callback is already dead.
func (d *Dispatcher) RegisterCallback(cb *Callback) (bool, error) {
	if err := d.ensureAccess("RegisterCallback"); err != nil {
		return false, err
	}
	if cb == nil {
		return false, nil
	}
	return cb.holder.register(cb)
}

// UnregisterCallback removes a callback equal to cb.
func (d *Dispatcher) UnregisterCallback(cb *Callback) (bool, error) {
	if err := d.ensureAccess("UnregisterCallback"); err != nil {
		return false, err
	}
	if cb == nil {
		return false, nil
	}
	return cb.holder.unregister(cb), nil
}

// UnregisterEvents removes every callback bound to handler from all holders
// of its scope: the InScope option, else the handler's own Scoped scope, else
// the default scope. Scopes pinned by the handler's event types are swept too.
// Callbacks added through RegisterCallback are removed as well.
func (d *Dispatcher) UnregisterEvents(handler any, opts ...RegisterOption) (bool, error) {
	if err := d.ensureAccess("UnregisterEvents"); err != nil {
		return false, err
	}
	if handler == nil {
		return false, ErrorRegistry.NewWithMessage(ErrRegistrationFailed, "handler is nil")
	}
	o := applyRegisterOptions(opts)

	scope := o.scope
	if scope == nil {
		if s, ok := handler.(Scoped); ok {
			scope = s.EventScope()
		}
	}
	home, err := d.rt.registriesFor(scope)
	if err != nil {
		return false, err
	}
	tables := []*Registries{home}

	skip := true
	o.skipInvalid = &skip
	if callbacks, err := d.discover(handler, o); err == nil {
		for _, cb := range callbacks {
			if !slices.Contains(tables, cb.holder.regs) {
				tables = append(tables, cb.holder.regs)
			}
		}
	}

	removed := false
	for _, regs := range tables {
		for _, h := range regs.snapshot() {
			if h.unregisterTarget(handler) {
				removed = true
			}
		}
	}
	return removed, nil
}

// UnregisterEventsIn removes every callback bound to handler from all
// holders of scope.
func (d *Dispatcher) UnregisterEventsIn(scope Scope, handler any) (bool, error) {
	if err := d.ensureAccess("UnregisterEventsIn"); err != nil {
		return false, err
	}
	removed := false
	err := d.rt.ForEachHolder(scope, func(h *Holder) {
		if h.unregisterTarget(handler) {
			removed = true
		}
	})
	return removed, err
}
