package eventx

import (
	"reflect"
	"slices"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/Abraxas-365/eventcraft/errx"
)

// Holder is the registry of one event type within one scope. It keeps the
// pending callbacks in registration order and compiles them lazily into a
// sorted, immutable table that dispatch walks without locking.
type Holder struct {
	rt       *Runtime
	regs     *Registries
	scopeGen uint64
	info     *eventType
	parent   *Holder

	mu       sync.Mutex
	pending  []*Callback
	children []weak.Pointer[Holder]
	// epoch counts table invalidations. A rebuild only publishes its table
	// if the epoch did not move while it ran.
	epoch uint64

	baked atomic.Pointer[Baked]
}

// Baked is a compiled dispatch table. It is never mutated once published.
type Baked struct {
	entries         []bakedEntry
	skipOnCancelled bool
	generation      uint64
}

type bakedEntry struct {
	cb *Callback
	// path leads from the dispatched struct to the embedded struct the
	// callback's holder describes. Empty for the holder's own callbacks.
	path []int
}

// Callbacks returns the callbacks in dispatch order.
func (b *Baked) Callbacks() []*Callback {
	out := make([]*Callback, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.cb
	}
	return out
}

// Len returns the number of callbacks in the table.
func (b *Baked) Len() int { return len(b.entries) }

// SkipOnCancelled reports whether no callback in the table ignores cancellation,
// so the walk can stop at the first cancellation.
func (b *Baked) SkipOnCancelled() bool { return b.skipOnCancelled }

// Generation returns the liveness generation the table was built for.
func (b *Baked) Generation() uint64 { return b.generation }

func newHolder(rt *Runtime, regs *Registries, gen uint64, info *eventType, parent *Holder) *Holder {
	return &Holder{
		rt:       rt,
		regs:     regs,
		scopeGen: gen,
		info:     info,
		parent:   parent,
	}
}

// EventType returns the event type. It fails once the holder's scope was
// closed or released.
func (h *Holder) EventType() (reflect.Type, error) {
	if err := h.checkLive(); err != nil {
		return nil, err
	}
	return h.info.typ, nil
}

// Name returns the fully qualified event type name.
func (h *Holder) Name() string { return h.info.name }

// Scope returns the scope the holder lives in.
func (h *Holder) Scope() Scope { return h.regs.scope }

// Parent returns the holder this one delegates to, or nil.
func (h *Holder) Parent() *Holder { return h.parent }

func (h *Holder) IsAbstract() bool    { return h.info.abstract }
func (h *Holder) IsDelegate() bool    { return h.parent != nil }
func (h *Holder) IsCancellable() bool { return h.info.cancellable }

// IsEmpty reports whether neither this holder nor any holder it delegates to
// has pending callbacks.
func (h *Holder) IsEmpty() bool {
	h.mu.Lock()
	empty := len(h.pending) == 0
	h.mu.Unlock()
	return empty && (h.parent == nil || h.parent.IsEmpty())
}

// Callbacks returns the pending callbacks of this holder in registration order.
func (h *Holder) Callbacks() []*Callback {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.pending)
}

// Baked returns the current dispatch table, rebuilding it if it is stale.
// Consecutive calls without any change return the same table.
func (h *Holder) Baked() (*Baked, error) {
	return h.acquire()
}

// EnsureBaked rebuilds the dispatch table now if it is stale, so the next
// dispatch does not pay for it.
func (h *Holder) EnsureBaked() error {
	_, err := h.acquire()
	return err
}

// Dispatch delivers e to the holder's callbacks using the active dispatcher's
// error hook. e must be exactly of the holder's type.
func (h *Holder) Dispatch(e Event) error {
	if isNil(e) {
		return ErrorRegistry.New(ErrNilEvent)
	}
	if reflect.TypeOf(e) != h.info.typ {
		return ErrorRegistry.New(ErrTypeMismatch).
			WithDetail("event", typeName(e)).
			WithDetail("expected", h.info.name)
	}
	e.base().holder = h
	return h.fire(e, h.rt.policy().onError)
}

func (h *Holder) stale() bool {
	return h.regs.closed.Load() || h.regs.generation.Load() != h.scopeGen
}

func (h *Holder) checkLive() error {
	if h.stale() {
		return ErrorRegistry.New(ErrResolutionFailed).
			WithDetail("event", h.info.name).
			WithDetail("scope", h.regs.name())
	}
	return nil
}

// acquire returns a table valid for the current liveness generation.
// Liveness predicates are evaluated with no holder lock held, so a predicate
// may safely inspect this holder or its ancestors.
func (h *Holder) acquire() (*Baked, error) {
	for {
		if err := h.checkLive(); err != nil {
			return nil, err
		}

		gen := h.rt.generation.Load()
		if b := h.baked.Load(); b != nil && b.generation == gen {
			return b, nil
		}

		h.mu.Lock()
		epoch := h.epoch
		h.mu.Unlock()

		start := time.Now()
		b := h.compile(gen)

		h.mu.Lock()
		if h.epoch != epoch {
			h.mu.Unlock()
			continue
		}
		if cur := h.baked.Load(); cur != nil && cur.generation == gen {
			h.mu.Unlock()
			return cur, nil
		}
		h.baked.Store(b)
		h.mu.Unlock()

		labels := map[string]string{"event": h.info.name}
		h.rt.metrics.IncrementCounter(MetricBakes, labels)
		h.rt.metrics.RecordDuration(MetricBakeDuration, time.Since(start), labels)
		h.rt.metrics.RecordValue(MetricBakedCallbacks, float64(len(b.entries)), labels)
		return b, nil
	}
}

// compile collects the live callbacks of h and its ancestors, purging dead
// ones from every pending list on the way, and sorts them.
func (h *Holder) compile(gen uint64) *Baked {
	own := h.livePending()
	entries := make([]bakedEntry, 0, len(own))
	for _, cb := range own {
		entries = append(entries, bakedEntry{cb: cb})
	}

	var path []int
	for child, anc := h, h.parent; anc != nil; child, anc = anc, anc.parent {
		path = append(slices.Clone(path), child.info.parentIndex...)
		for _, cb := range anc.livePending() {
			entries = append(entries, bakedEntry{cb: cb, path: path})
		}
	}

	compare := h.rt.policy().comparator
	sort.SliceStable(entries, func(i, j int) bool {
		return compare(entries[i].cb, entries[j].cb) < 0
	})

	skip := !slices.ContainsFunc(entries, func(e bakedEntry) bool { return e.cb.ignoreCancelled })
	return &Baked{entries: entries, skipOnCancelled: skip, generation: gen}
}

// livePending returns the live pending callbacks and drops the dead ones.
// Liveness predicates run without holding h.mu.
func (h *Holder) livePending() []*Callback {
	h.mu.Lock()
	snapshot := slices.Clone(h.pending)
	h.mu.Unlock()

	live := make([]*Callback, 0, len(snapshot))
	var dead []*Callback
	for _, cb := range snapshot {
		if cb.IsInvalid() {
			dead = append(dead, cb)
			continue
		}
		live = append(live, cb)
	}

	if len(dead) > 0 {
		h.mu.Lock()
		h.pending = slices.DeleteFunc(h.pending, func(cb *Callback) bool {
			return slices.Contains(dead, cb)
		})
		h.mu.Unlock()
	}
	return live
}

// fire walks the table for e, reporting every failure to hook.
func (h *Holder) fire(e Event, hook ErrorHook) error {
	if h.info.abstract {
		return ErrorRegistry.New(ErrAbstractEvent).WithDetail("event", h.info.name)
	}

	b, err := h.acquire()
	if err != nil {
		return err
	}

	state := e.base()
	var failures []error
	for _, entry := range b.entries {
		if state.cancelled {
			if b.skipOnCancelled {
				break
			}
			if !entry.cb.ignoreCancelled {
				continue
			}
		}

		if cerr := entry.cb.call(project(e, entry.path)); cerr != nil {
			h.rt.metrics.IncrementCounter(MetricHandlerFailures, map[string]string{
				"event": h.info.name,
				"panic": strconv.FormatBool(errx.IsCode(cerr, ErrHandlerPanic)),
			})
			if herr := hook(e, entry.cb, cerr); herr != nil {
				failures = append(failures, herr)
			}
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return ErrorRegistry.NewAggregate(ErrDispatchFailed, failures).
		WithDetail("event", h.info.name)
}

// register appends cb unless an equal callback is pending or cb is already dead.
func (h *Holder) register(cb *Callback) (bool, error) {
	if cb == nil {
		return false, nil
	}
	if cb.holder != h {
		return false, ErrorRegistry.New(ErrOwnershipMismatch).
			WithDetail("holder", h.info.name).
			WithDetail("callback", cb.key)
	}
	if err := h.checkLive(); err != nil {
		return false, err
	}
	if cb.IsInvalid() {
		return false, nil
	}

	h.mu.Lock()
	for _, existing := range h.pending {
		if existing.Equal(cb) {
			h.mu.Unlock()
			return false, nil
		}
	}
	h.pending = append(h.pending, cb)
	h.epoch++
	h.baked.Store(nil)
	kids := h.liveChildren()
	h.mu.Unlock()

	invalidateAll(kids)
	return true, nil
}

// unregister removes the first pending callback equal to cb.
func (h *Holder) unregister(cb *Callback) bool {
	if cb == nil || cb.holder != h {
		return false
	}
	return h.removeWhere(func(existing *Callback) bool { return existing.Equal(cb) }, true)
}

// unregisterTarget removes every pending callback bound to target.
func (h *Holder) unregisterTarget(target any) bool {
	return h.removeWhere(func(existing *Callback) bool { return sameTarget(existing.target, target) }, false)
}

// removeWhere deletes matching callbacks and invalidates tables only when
// something was actually removed.
func (h *Holder) removeWhere(match func(*Callback) bool, first bool) bool {
	h.mu.Lock()
	removed := false
	kept := h.pending[:0]
	for _, cb := range h.pending {
		if (!removed || !first) && match(cb) {
			removed = true
			continue
		}
		kept = append(kept, cb)
	}
	clear(h.pending[len(kept):])
	h.pending = kept

	if !removed {
		h.mu.Unlock()
		return false
	}
	h.epoch++
	h.baked.Store(nil)
	kids := h.liveChildren()
	h.mu.Unlock()

	invalidateAll(kids)
	return true
}

func (h *Holder) contains(cb *Callback) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.ContainsFunc(h.pending, cb.Equal)
}

// IsRegistered reports whether a callback equal to cb is pending here.
func (h *Holder) IsRegistered(cb *Callback) bool {
	return cb != nil && cb.holder == h && h.contains(cb)
}

// invalidate drops the table of h and of every holder delegating to it.
// Locks are taken one holder at a time.
func (h *Holder) invalidate() {
	h.mu.Lock()
	h.epoch++
	h.baked.Store(nil)
	kids := h.liveChildren()
	h.mu.Unlock()

	invalidateAll(kids)
}

func invalidateAll(holders []*Holder) {
	for _, k := range holders {
		k.invalidate()
	}
}

// liveChildren resolves the weak child set, pruning reclaimed entries.
// Callers hold h.mu.
func (h *Holder) liveChildren() []*Holder {
	if len(h.children) == 0 {
		return nil
	}
	kids := make([]*Holder, 0, len(h.children))
	kept := h.children[:0]
	for _, wp := range h.children {
		if k := wp.Value(); k != nil {
			kids = append(kids, k)
			kept = append(kept, wp)
		}
	}
	clear(h.children[len(kept):])
	h.children = kept
	return kids
}

func (h *Holder) addChild(child *Holder) {
	h.mu.Lock()
	h.children = append(h.children, weak.Make(child))
	h.mu.Unlock()
}

// pathFrom returns the field path from an occurrence of type t to the struct
// this holder describes, or false if t does not reach it by delegation.
func (h *Holder) pathFrom(t reflect.Type) ([]int, bool) {
	var path []int
	for t != nil {
		if t == h.info.typ {
			return path, true
		}
		info, err := describe(t)
		if err != nil || info.parent == nil {
			return nil, false
		}
		path = append(path, info.parentIndex...)
		t = info.parent
	}
	return nil, false
}
