package eventx

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/eventcraft/configx"
)

type countingMetrics struct {
	mu       sync.Mutex
	counters map[string]int
	values   map[string]float64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counters: map[string]int{}, values: map[string]float64{}}
}

func (m *countingMetrics) RecordDuration(string, time.Duration, map[string]string) {}

func (m *countingMetrics) IncrementCounter(metric string, _ map[string]string) {
	m.mu.Lock()
	m.counters[metric]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordValue(metric string, v float64, _ map[string]string) {
	m.mu.Lock()
	m.values[metric] = v
	m.mu.Unlock()
}

func (m *countingMetrics) counter(metric string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metric]
}

// brokenListener has one valid handler and one with an invalid signature.
type brokenListener struct {
	rec *recorder
}

func (l *brokenListener) OnBasic(e *BasicEvent) { l.rec.add("basic") }

func (l *brokenListener) OnBroken(e *SecondaryEvent) int { return 0 }

func TestDispatcher_AccessControl(t *testing.T) {
	metrics := newCountingMetrics()
	rt := newTestRuntime(t, WithMetrics(metrics))
	active := rt.Active()
	other := rt.NewDispatcher("other")
	l := &basicListener{rec: &recorder{}}

	assert.True(t, active.IsActive())
	assert.False(t, other.HasAccess())

	_, err := other.RegisterEvents(l)
	assert.True(t, isCode(err, ErrAccessDenied))
	_, err = other.UnregisterEvents(l)
	assert.True(t, isCode(err, ErrAccessDenied))
	assert.True(t, isCode(other.InvalidateLiveness(), ErrAccessDenied))
	_, err = other.Callbacks(l)
	assert.True(t, isCode(err, ErrAccessDenied))
	assert.Equal(t, 4, metrics.counter(MetricAccessDenied))

	// Dispatch needs no privileges.
	assert.NoError(t, other.Dispatch(&BasicEvent{}))

	require.NoError(t, active.Grant(other))
	assert.True(t, other.HasAccess())
	assert.False(t, other.IsActive())

	n, err := other.RegisterEvents(l)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDispatcher_GrantRequiresAccess(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Active()
	a := rt.NewDispatcher("a")
	b := rt.NewDispatcher("b")

	assert.True(t, isCode(a.Grant(b), ErrAccessDenied))
	assert.True(t, isCode(rt.Active().Grant(nil), ErrAccessDenied))

	foreign := newTestRuntime(t).NewDispatcher("foreign")
	assert.True(t, isCode(rt.Active().Grant(foreign), ErrAccessDenied))
}

func TestRuntime_Activate(t *testing.T) {
	rt := newTestRuntime(t)
	custom := rt.NewDispatcher("custom")

	require.NoError(t, rt.Activate(custom))
	assert.Same(t, custom, rt.Active())
	assert.NoError(t, rt.Activate(custom))

	err := rt.Activate(rt.NewDispatcher("late"))
	assert.True(t, isCode(err, ErrAlreadyActive))

	foreign := newTestRuntime(t).NewDispatcher("foreign")
	assert.True(t, isCode(rt.Activate(foreign), ErrAccessDenied))
	assert.True(t, isCode(rt.Activate(nil), ErrAccessDenied))
}

func TestRuntime_ActivateAfterBuiltin(t *testing.T) {
	rt := newTestRuntime(t)
	builtin := rt.Active()

	err := rt.Activate(rt.NewDispatcher("late"))

	assert.True(t, isCode(err, ErrAlreadyActive))
	assert.Same(t, builtin, rt.Active())
}

func TestRuntime_ForceActivate(t *testing.T) {
	t.Run("without guard", func(t *testing.T) {
		rt := newTestRuntime(t)
		builtin := rt.Active()
		next := rt.NewDispatcher("next")

		require.NoError(t, rt.ForceActivate(next))

		assert.True(t, next.IsActive())
		assert.False(t, builtin.HasAccess())
	})

	t.Run("guard refuses", func(t *testing.T) {
		var ops []string
		guard := func(op string) error {
			ops = append(ops, op)
			return errors.New("tests only")
		}
		rt := newTestRuntime(t, WithPolicy(WithUnsafeGuard(guard)))
		builtin := rt.Active()

		err := rt.ForceActivate(rt.NewDispatcher("next"))
		assert.True(t, isCode(err, ErrAccessDenied))
		assert.True(t, builtin.IsActive())

		err = builtin.Grant(rt.NewDispatcher("helper"))
		assert.True(t, isCode(err, ErrAccessDenied))
		assert.Equal(t, []string{"ForceActivate", "Grant"}, ops)
	})
}

func TestDispatcher_ComparatorFollowsActivePolicy(t *testing.T) {
	ascending := func(a, b *Callback) int { return -ByPriority(a, b) }
	rt := newTestRuntime(t, WithPolicy(WithComparator(ascending)))
	rec := &recorder{}
	_, err := rt.Active().RegisterFuncs(
		On(func(*BasicEvent) { rec.add("high") }, Priority(10)),
		On(func(*BasicEvent) { rec.add("low") }, Priority(1)),
	)
	require.NoError(t, err)

	require.NoError(t, rt.Dispatch(&BasicEvent{}))

	assert.Equal(t, []string{"low", "high"}, rec.list())
}

func TestDispatcher_RegisterEvents(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	l := &sampleListener{rec: &recorder{}}

	n, err := d.RegisterEvents(l)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = d.RegisterEvents(l)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = d.RegisterEvents(&sampleListener{rec: &recorder{}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cbs := mustHolder[*SampleEvent](t, rt).Callbacks()
	require.Len(t, cbs, 4)
	assert.Equal(t, "*eventx.sampleListener.OnA", cbs[0].Key())
	assert.Equal(t, DefaultPriority, cbs[0].Priority())
	assert.Equal(t, 999, cbs[1].Priority())
	assert.True(t, cbs[1].IgnoreCancelled())
	assert.Same(t, l, cbs[0].Target())

	_, err = d.RegisterEvents(nil)
	assert.True(t, isCode(err, ErrRegistrationFailed))
}

func TestDispatcher_RegisterEventsIsAtomic(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	l := &brokenListener{rec: &recorder{}}

	n, err := d.RegisterEvents(l)
	require.Error(t, err)
	assert.True(t, isCode(err, ErrRegistrationFailed))
	assert.Contains(t, err.Error(), "failed to bind method *eventx.brokenListener.OnBroken")
	assert.Zero(t, n)
	assert.True(t, mustHolder[*BasicEvent](t, rt).IsEmpty())

	n, err = d.RegisterEvents(l, SkipInvalid(true))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, mustHolder[*BasicEvent](t, rt).IsEmpty())
}

func TestDispatcher_SkipInvalidFromConfig(t *testing.T) {
	rt := newTestRuntime(t, WithConfig(Config{SkipInvalid: true}))

	n, err := rt.Active().RegisterEvents(&brokenListener{rec: &recorder{}})

	require.NoError(t, err)
	assert.Equal(t, 1, n)

	strict := rt.NewDispatcher("strict", WithSkipInvalid(false))
	require.NoError(t, rt.Active().Grant(strict))
	_, err = strict.RegisterEvents(&brokenListener{rec: &recorder{}})
	assert.True(t, isCode(err, ErrRegistrationFailed))
}

func TestDispatcher_RegisterFuncsIsAtomic(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()

	_, err := d.RegisterFuncs(
		On(func(*BasicEvent) {}),
		On[*SecondaryEvent](nil),
	)

	assert.True(t, isCode(err, ErrRegistrationFailed))
	assert.True(t, mustHolder[*BasicEvent](t, rt).IsEmpty())
}

func TestDispatcher_DefaultPriorityFromConfig(t *testing.T) {
	rt := newTestRuntime(t, WithConfig(Config{DefaultPriority: 5}))

	cbs, err := rt.Active().RegisterFuncs(On(func(*BasicEvent) {}))
	require.NoError(t, err)

	assert.Equal(t, 5, cbs[0].Priority())
}

func TestDispatcher_UnregisterEvents(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	rec := &recorder{}
	first := &basicListener{rec: rec}
	second := &basicListener{rec: rec}

	_, err := d.RegisterEvents(first)
	require.NoError(t, err)
	_, err = d.RegisterEvents(second)
	require.NoError(t, err)

	removed, err := d.UnregisterEvents(first)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = d.UnregisterEvents(first)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, rt.Dispatch(&BasicEvent{}))
	assert.Equal(t, []string{"basic"}, rec.list())

	cbs := mustHolder[*BasicEvent](t, rt).Callbacks()
	require.Len(t, cbs, 1)
	assert.Same(t, second, cbs[0].Target())
}

func TestDispatcher_UnregisterEventsRemovesManualCallbacks(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	rec := &recorder{}
	l := &basicListener{rec: rec}

	_, err := d.RegisterEvents(l)
	require.NoError(t, err)
	extra, err := d.NewCallback(l, reflect.TypeFor[*SampleEvent](), func(Event) error {
		rec.add("extra")
		return nil
	}, WithKey("extra"))
	require.NoError(t, err)
	ok, err := d.RegisterCallback(extra)
	require.NoError(t, err)
	require.True(t, ok)

	removed, err := d.UnregisterEvents(l)
	require.NoError(t, err)
	assert.True(t, removed)

	assert.Empty(t, mustHolder[*SampleEvent](t, rt).Callbacks())
	assert.True(t, mustHolder[*BasicEvent](t, rt).IsEmpty())
	require.NoError(t, rt.Dispatch(&SampleEvent{}))
	require.NoError(t, rt.Dispatch(&BasicEvent{}))
	assert.Empty(t, rec.list())
}

func TestDispatcher_UnregisterEventsUsesHandlerScope(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	arena := rt.NewArena("plugin")
	rec := &recorder{}
	l := &scopedListener{scope: arena, rec: rec}

	_, err := d.RegisterEvents(l)
	require.NoError(t, err)
	extra, err := d.NewCallback(l, reflect.TypeFor[*SecondaryEvent](), func(Event) error { return nil }, WithKey("extra"))
	require.NoError(t, err)
	_, err = d.RegisterCallback(extra)
	require.NoError(t, err)

	removed, err := d.UnregisterEvents(l)
	require.NoError(t, err)
	assert.True(t, removed)

	for _, typ := range []reflect.Type{reflect.TypeFor[*BasicEvent](), reflect.TypeFor[*SecondaryEvent]()} {
		h, err := rt.HolderOf(arena, typ)
		require.NoError(t, err)
		assert.True(t, h.IsEmpty(), typ.String())
	}
}

func TestDispatcher_UnregisterEventsNil(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.Active().UnregisterEvents(nil)

	assert.True(t, isCode(err, ErrRegistrationFailed))
}

func TestDispatcher_UnregisterEventsIn(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	arena := rt.NewArena("plugin")
	l := &basicListener{rec: &recorder{}}

	_, err := d.RegisterEvents(l, InScope(arena))
	require.NoError(t, err)
	_, err = d.RegisterEvents(l)
	require.NoError(t, err)

	removed, err := d.UnregisterEventsIn(arena, l)
	require.NoError(t, err)
	assert.True(t, removed)

	inArena, err := HolderIn[*BasicEvent](rt, arena)
	require.NoError(t, err)
	assert.True(t, inArena.IsEmpty())
	assert.False(t, mustHolder[*BasicEvent](t, rt).IsEmpty())

	arena.Close()
	_, err = d.UnregisterEventsIn(arena, l)
	assert.True(t, isCode(err, ErrScopeClosed))
}

func TestDispatcher_CallbacksDoesNotRegister(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()

	cbs, err := d.Callbacks(&basicListener{rec: &recorder{}})
	require.NoError(t, err)

	require.Len(t, cbs, 2)
	for _, cb := range cbs {
		assert.False(t, cb.IsRegistered())
	}
	assert.True(t, mustHolder[*BasicEvent](t, rt).IsEmpty())
}

func TestDispatcher_ScopedHandler(t *testing.T) {
	rt := newTestRuntime(t)
	arena := rt.NewArena("handlers")
	l := &scopedListener{scope: arena, rec: &recorder{}}

	_, err := rt.Active().RegisterEvents(l)
	require.NoError(t, err)

	h, err := HolderIn[*BasicEvent](rt, arena)
	require.NoError(t, err)
	assert.False(t, h.IsEmpty())
	assert.True(t, mustHolder[*BasicEvent](t, rt).IsEmpty())
}

type scopedListener struct {
	scope Scope
	rec   *recorder
}

func (l *scopedListener) EventScope() Scope { return l.scope }

func (l *scopedListener) OnBasic(e *BasicEvent) { l.rec.add("scoped") }

func TestConfigFrom(t *testing.T) {
	cfg, err := configx.New(configx.WithMap(map[string]any{
		"ignore":  map[string]any{"leaks": true},
		"default": map[string]any{"priority": "250"},
	}, "test"))
	require.NoError(t, err)

	got := ConfigFrom(cfg)

	assert.Equal(t, Config{IgnoreLeaks: true, DefaultPriority: 250}, got)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("EVENTX_SKIP_INVALID", "true")
	t.Setenv("EVENTX_DEFAULT_PRIORITY", "0")

	got, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, got.SkipInvalid)
	assert.False(t, got.IgnoreLeaks)
	assert.Equal(t, 0, got.DefaultPriority)
}
