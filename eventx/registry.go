package eventx

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Scope identifies an isolation domain. Holders of the same event type in
// different scopes are independent.
type Scope interface {
	ScopeName() string
}

// ScopeStorage is a Scope that owns the table of its holders. Scopes that do
// not implement it are kept in the runtime's fallback table until released.
type ScopeStorage interface {
	Scope
	Registries() *Registries
}

// Registries is the holder table of one scope. The zero value is ready to
// use; it binds to the first Runtime that resolves through it.
type Registries struct {
	mu      sync.Mutex
	rt      *Runtime
	scope   Scope
	holders map[reflect.Type]*Holder

	generation atomic.Uint64
	closed     atomic.Bool
}

func (r *Registries) name() string {
	if r.scope == nil {
		return "<unbound>"
	}
	return r.scope.ScopeName()
}

// bind attaches the table to rt and scope on first use.
func (r *Registries) bind(rt *Runtime, scope Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rt == nil {
		r.rt = rt
		r.scope = scope
		r.holders = make(map[reflect.Type]*Holder)
		return nil
	}
	if r.rt != rt {
		return ErrorRegistry.New(ErrInvalidScope).
			WithDetail("scope", scope.ScopeName()).
			WithDetail("reason", "registries already bound to another runtime")
	}
	return nil
}

// holder returns the memoized holder for info, creating it and its delegate
// parents on first use. The table lock is not held while parents resolve; a
// parent that went stale in the meantime is resolved again.
func (r *Registries) holder(info *eventType) (*Holder, error) {
	for {
		if r.closed.Load() {
			return nil, ErrorRegistry.New(ErrScopeClosed).WithDetail("scope", r.name())
		}

		r.mu.Lock()
		if h, ok := r.holders[info.typ]; ok {
			r.mu.Unlock()
			return h, nil
		}
		r.mu.Unlock()

		var parent *Holder
		if info.parent != nil {
			parentInfo, err := describe(info.parent)
			if err != nil {
				return nil, err
			}
			if parent, err = r.holder(parentInfo); err != nil {
				return nil, err
			}
		}

		h, retry, err := r.insert(info, parent)
		if !retry {
			return h, err
		}
	}
}

// insert stores a new holder for info unless one appeared concurrently. It
// asks for a retry when parent belongs to a generation that was reset.
func (r *Registries) insert(info *eventType, parent *Holder) (*Holder, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return nil, false, ErrorRegistry.New(ErrScopeClosed).WithDetail("scope", r.name())
	}
	if h, ok := r.holders[info.typ]; ok {
		return h, false, nil
	}
	gen := r.generation.Load()
	if parent != nil && parent.scopeGen != gen {
		return nil, true, nil
	}
	h := newHolder(r.rt, r, gen, info, parent)
	r.holders[info.typ] = h
	if parent != nil {
		parent.addChild(h)
	}
	return h, false, nil
}

// snapshot returns the current holders sorted by name.
func (r *Registries) snapshot() []*Holder {
	r.mu.Lock()
	out := make([]*Holder, 0, len(r.holders))
	for _, h := range r.holders {
		out = append(out, h)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].info.name < out[j].info.name })
	return out
}

// reset drops every holder. Holders handed out before become stale.
func (r *Registries) reset(close bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation.Add(1)
	if close {
		r.closed.Store(true)
	}
	if r.holders != nil {
		r.holders = make(map[reflect.Type]*Holder)
	}
}

// Arena is a scope with its own storage and deterministic teardown.
type Arena struct {
	id   uuid.UUID
	name string
	rt   *Runtime
	regs Registries
}

// ScopeName implements Scope.
func (a *Arena) ScopeName() string { return a.name }

// ID returns the unique arena identifier.
func (a *Arena) ID() uuid.UUID { return a.id }

// Registries implements ScopeStorage.
func (a *Arena) Registries() *Registries { return &a.regs }

// Generation is incremented by every Reset and Close.
func (a *Arena) Generation() uint64 { return a.regs.generation.Load() }

// Closed reports whether Close was called.
func (a *Arena) Closed() bool { return a.regs.closed.Load() }

// Reset drops every holder of the arena. Holders obtained earlier fail with
// RESOLUTION_FAILED; new lookups create fresh, empty holders.
func (a *Arena) Reset() {
	a.regs.reset(false)
}

// Close drops every holder and refuses further lookups.
func (a *Arena) Close() {
	a.regs.reset(true)
	if a.rt != nil {
		a.rt.forgetArena(a)
	}
}

func (a *Arena) String() string {
	return fmt.Sprintf("arena(%s, %s)", a.name, a.id)
}
