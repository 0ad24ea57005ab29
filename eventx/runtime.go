package eventx

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Abraxas-365/eventcraft/logx"
)

// Runtime is the context every holder, scope and dispatcher belongs to. It
// owns the liveness generation, the fallback scope table and the slot of the
// active dispatcher.
type Runtime struct {
	generation atomic.Uint64
	active     atomic.Pointer[Dispatcher]
	builtin    *Dispatcher

	defaultArena *Arena

	mu       sync.Mutex
	fallback map[Scope]*Registries
	arenas   map[uuid.UUID]*Arena
	warned   logx.Once

	logger  Logger
	metrics MetricsCollector
	config  Config
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime) error

// WithLogger sets the diagnostics sink.
func WithLogger(logger Logger) RuntimeOption {
	return func(rt *Runtime) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		rt.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics MetricsCollector) RuntimeOption {
	return func(rt *Runtime) error {
		if metrics == nil {
			return fmt.Errorf("metrics collector must not be nil")
		}
		rt.metrics = metrics
		return nil
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) RuntimeOption {
	return func(rt *Runtime) error {
		if cfg.DefaultPriority == 0 {
			cfg.DefaultPriority = DefaultPriority
		}
		rt.config = cfg
		return nil
	}
}

// WithPolicy configures the runtime's built-in dispatcher, the one Active
// returns when no other dispatcher was activated.
func WithPolicy(opts ...DispatcherOption) RuntimeOption {
	return func(rt *Runtime) error {
		for _, opt := range opts {
			opt(rt.builtin)
		}
		return nil
	}
}

// NewRuntime creates an independent runtime.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	rt := &Runtime{
		fallback: make(map[Scope]*Registries),
		arenas:   make(map[uuid.UUID]*Arena),
		logger:   defaultLogger(),
		metrics:  nopMetrics{},
		config:   DefaultConfig(),
	}
	rt.builtin = newDispatcher(rt, "default")

	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return nil, err
		}
	}
	rt.builtin.skipInvalid = rt.builtin.skipInvalid || rt.config.SkipInvalid

	rt.defaultArena = rt.newArena("default", false)
	return rt, nil
}

var (
	defaultRuntime     *Runtime
	defaultRuntimeOnce sync.Once
)

// Default returns the process-wide runtime, configured from EVENTX_
// environment variables on first use.
func Default() *Runtime {
	defaultRuntimeOnce.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			logx.Warn("eventx: falling back to default config: %v", err)
			cfg = DefaultConfig()
		}
		rt, err := NewRuntime(WithConfig(cfg))
		if err != nil {
			panic(err)
		}
		defaultRuntime = rt
	})
	return defaultRuntime
}

// Config returns the runtime configuration.
func (rt *Runtime) Config() Config { return rt.config }

// Logger returns the diagnostics sink.
func (rt *Runtime) Logger() Logger { return rt.logger }

// Generation returns the current liveness generation.
func (rt *Runtime) Generation() uint64 { return rt.generation.Load() }

// InvalidateLiveness starts a new liveness generation without activating any
// dispatcher. It changes no registration, so it needs no dispatcher access.
func (rt *Runtime) InvalidateLiveness() uint64 { return rt.generation.Add(1) }

// Activate makes d the active dispatcher. It fails if another dispatcher is
// already active, including the built-in one after Active was called.
func (rt *Runtime) Activate(d *Dispatcher) error {
	if d == nil || d.rt != rt {
		return ErrorRegistry.New(ErrAccessDenied).
			WithDetail("operation", "Activate").
			WithDetail("reason", "dispatcher belongs to another runtime")
	}
	if rt.active.CompareAndSwap(nil, d) || rt.active.Load() == d {
		rt.logger.Debug("dispatcher %s activated", d.name)
		return nil
	}
	return ErrorRegistry.New(ErrAlreadyActive).
		WithDetail("active", rt.active.Load().name).
		WithDetail("requested", d.name)
}

// ForceActivate replaces the active dispatcher after the current policy's
// unsafe guard allowed it.
func (rt *Runtime) ForceActivate(d *Dispatcher) error {
	if d == nil || d.rt != rt {
		return ErrorRegistry.New(ErrAccessDenied).
			WithDetail("operation", "ForceActivate").
			WithDetail("reason", "dispatcher belongs to another runtime")
	}
	if err := rt.policy().checkUnsafe("ForceActivate"); err != nil {
		return err
	}
	prev := rt.active.Swap(d)
	if prev != nil && prev != d {
		rt.logger.Warn("dispatcher %s replaced %s", d.name, prev.name)
	}
	return nil
}

// Active returns the active dispatcher, activating the built-in one if none is.
func (rt *Runtime) Active() *Dispatcher {
	if d := rt.active.Load(); d != nil {
		return d
	}
	rt.active.CompareAndSwap(nil, rt.builtin)
	return rt.active.Load()
}

// policy returns the active dispatcher without activating anything.
func (rt *Runtime) policy() *Dispatcher {
	if d := rt.active.Load(); d != nil {
		return d
	}
	return rt.builtin
}

// Dispatch delivers e using the active dispatcher's error hook.
func (rt *Runtime) Dispatch(e Event) error {
	return rt.dispatch(e, rt.policy().onError)
}

func (rt *Runtime) dispatch(e Event, hook ErrorHook) error {
	if isNil(e) {
		return ErrorRegistry.New(ErrNilEvent)
	}
	h, err := rt.holderForEvent(e)
	if err != nil {
		return err
	}
	return h.fire(e, hook)
}

// holderForEvent resolves the holder of e, reusing the one cached on the
// occurrence when it is still valid.
func (rt *Runtime) holderForEvent(e Event) (*Holder, error) {
	state := e.base()
	t := reflect.TypeOf(e)
	if h := state.holder; h != nil && h.rt == rt && h.info.typ == t && !h.stale() {
		return h, nil
	}

	if p, ok := e.(HolderProvider); ok {
		if h := p.ProvideHolder(rt); h != nil && h.rt == rt && h.info.typ == t && !h.stale() {
			state.holder = h
			return h, nil
		}
	}

	var scope Scope
	if s, ok := e.(Scoped); ok {
		scope = s.EventScope()
	}
	h, err := rt.HolderOf(scope, t)
	if err != nil {
		return nil, err
	}
	state.holder = h
	return h, nil
}

// HolderOf returns the holder of event type t in scope. A nil scope means the
// runtime's default scope.
func (rt *Runtime) HolderOf(scope Scope, t reflect.Type) (*Holder, error) {
	info, err := describe(t)
	if err != nil {
		return nil, err
	}
	regs, err := rt.registriesFor(scope)
	if err != nil {
		return nil, err
	}
	return regs.holder(info)
}

// HolderFor returns the holder of T in the scope T declares, or the default scope.
//
//	h, err := eventx.HolderFor[*PlayerJoined](rt)
func HolderFor[T Event](rt *Runtime) (*Holder, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Ptr {
		return nil, ErrorRegistry.New(ErrInvalidEventType).WithDetail("type", t.String())
	}
	return rt.HolderOf(scopeOfType(t), t)
}

// HolderIn returns the holder of T in scope.
func HolderIn[T Event](rt *Runtime, scope Scope) (*Holder, error) {
	return rt.HolderOf(scope, reflect.TypeFor[T]())
}

// DefaultScope returns the scope used when none is given.
func (rt *Runtime) DefaultScope() *Arena { return rt.defaultArena }

// NewArena creates a scope with its own storage.
func (rt *Runtime) NewArena(name string) *Arena {
	return rt.newArena(name, true)
}

func (rt *Runtime) newArena(name string, track bool) *Arena {
	a := &Arena{id: uuid.New(), name: name, rt: rt}
	// A fresh table cannot be bound elsewhere.
	_ = a.regs.bind(rt, a)
	if track {
		rt.mu.Lock()
		rt.arenas[a.id] = a
		rt.mu.Unlock()
	}
	return a
}

func (rt *Runtime) forgetArena(a *Arena) {
	rt.mu.Lock()
	delete(rt.arenas, a.id)
	rt.mu.Unlock()
}

// registriesFor resolves the table of scope, creating a fallback entry for
// scopes without storage.
func (rt *Runtime) registriesFor(scope Scope) (*Registries, error) {
	if scope == nil {
		return &rt.defaultArena.regs, nil
	}

	if s, ok := scope.(ScopeStorage); ok {
		regs := s.Registries()
		if regs == nil {
			return nil, ErrorRegistry.New(ErrInvalidScope).
				WithDetail("scope", scope.ScopeName()).
				WithDetail("reason", "scope returned no registries")
		}
		if err := regs.bind(rt, scope); err != nil {
			return nil, err
		}
		if regs.closed.Load() {
			return nil, ErrorRegistry.New(ErrScopeClosed).WithDetail("scope", scope.ScopeName())
		}
		return regs, nil
	}

	if !reflect.ValueOf(scope).Comparable() {
		return nil, ErrorRegistry.New(ErrInvalidScope).
			WithDetail("scope", scope.ScopeName()).
			WithDetail("reason", "scopes without storage must be comparable")
	}

	rt.mu.Lock()
	regs, ok := rt.fallback[scope]
	if !ok {
		regs = &Registries{}
		_ = regs.bind(rt, scope)
		rt.fallback[scope] = regs
	}
	rt.mu.Unlock()

	if !ok {
		rt.warnLeak(scope)
	}
	return regs, nil
}

// warnLeak reports, once per scope kind, that holders of a scope without
// storage stay alive until ReleaseScope.
func (rt *Runtime) warnLeak(scope Scope) {
	if rt.config.IgnoreLeaks {
		return
	}
	kind := fmt.Sprintf("%T", scope)
	if !rt.warned.First(kind) {
		return
	}
	rt.logger.Warn("possible memory leak: scope %q of kind %s has no storage, its registries are kept until ReleaseScope", scope.ScopeName(), kind)
	if rt.warned.First("\x00advice") {
		rt.logger.Warn("to fix this, implement eventx.ScopeStorage on %s or embed an *eventx.Arena", kind)
		rt.logger.Warn("if such scopes live as long as the process, this message can be ignored or silenced with EVENTX_IGNORE_LEAKS=true")
	}
}

// ReleaseScope drops the fallback table of scope. Holders obtained from it
// become stale. It reports whether anything was released.
func (rt *Runtime) ReleaseScope(scope Scope) bool {
	if scope == nil || !reflect.ValueOf(scope).Comparable() {
		return false
	}
	rt.mu.Lock()
	regs, ok := rt.fallback[scope]
	delete(rt.fallback, scope)
	rt.mu.Unlock()

	if ok {
		regs.reset(true)
	}
	return ok
}

// ForEachHolder calls fn for every holder existing in scope when the call
// starts. A nil scope means the default scope.
func (rt *Runtime) ForEachHolder(scope Scope, fn func(*Holder)) error {
	regs, err := rt.registriesFor(scope)
	if err != nil {
		return err
	}
	for _, h := range regs.snapshot() {
		fn(h)
	}
	return nil
}

// Scopes lists the default scope, open arenas and fallback scopes.
func (rt *Runtime) Scopes() []Scope {
	rt.mu.Lock()
	arenas := make([]Scope, 0, len(rt.arenas))
	for _, a := range rt.arenas {
		arenas = append(arenas, a)
	}
	foreign := make([]Scope, 0, len(rt.fallback))
	for s := range rt.fallback {
		foreign = append(foreign, s)
	}
	rt.mu.Unlock()

	byName := func(s []Scope) {
		sort.Slice(s, func(i, j int) bool { return s[i].ScopeName() < s[j].ScopeName() })
	}
	byName(arenas)
	byName(foreign)

	out := make([]Scope, 0, 1+len(arenas)+len(foreign))
	out = append(out, rt.defaultArena)
	out = append(out, arenas...)
	return append(out, foreign...)
}

// NewDispatcher creates a dispatcher bound to rt. It must be activated or
// granted access before it can register handlers.
func (rt *Runtime) NewDispatcher(name string, opts ...DispatcherOption) *Dispatcher {
	d := newDispatcher(rt, name)
	d.skipInvalid = rt.config.SkipInvalid
	for _, opt := range opts {
		opt(d)
	}
	return d
}
