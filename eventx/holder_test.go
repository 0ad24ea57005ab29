package eventx

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_OrdersByPriorityThenRegistration(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	h := mustHolder[*BasicEvent](t, rt)
	rec := &recorder{}

	for _, c := range []struct {
		key      string
		priority int
	}{
		{"low", 10},
		{"first-1000", 1000},
		{"high", 2000},
		{"second-1000", 1000},
	} {
		ok, err := d.RegisterCallback(mustCallback(t, d, h, c.key, c.priority, false, rec))
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, rt.Dispatch(&BasicEvent{}))

	assert.Equal(t, []string{"high", "first-1000", "second-1000", "low"}, rec.list())
}

func TestHolder_BakedIsIdempotent(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	h := mustHolder[*BasicEvent](t, rt)
	rec := &recorder{}

	_, err := d.RegisterCallback(mustCallback(t, d, h, "a", 1, false, rec))
	require.NoError(t, err)

	first, err := h.Baked()
	require.NoError(t, err)
	second, err := h.Baked()
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = d.RegisterCallback(mustCallback(t, d, h, "b", 2, false, rec))
	require.NoError(t, err)

	third, err := h.Baked()
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, third.Len())
}

func TestHolder_RegisterThenUnregisterRestoresEmpty(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	h := mustHolder[*BasicEvent](t, rt)
	cb := mustCallback(t, d, h, "a", 1, false, &recorder{})

	assert.True(t, h.IsEmpty())

	ok, err := d.RegisterCallback(cb)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, h.IsEmpty())
	assert.True(t, cb.IsRegistered())

	ok, err = d.UnregisterCallback(cb)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, h.IsEmpty())
	assert.False(t, cb.IsRegistered())
}

func TestHolder_DuplicateRegistrationIsRefused(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	h := mustHolder[*BasicEvent](t, rt)
	rec := &recorder{}
	cb := mustCallback(t, d, h, "a", 1, false, rec)
	twin := mustCallback(t, d, h, "a", 1, false, rec)

	require.True(t, cb.Equal(twin))
	assert.NotEqual(t, cb.ID(), twin.ID())

	ok, err := d.RegisterCallback(cb)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.RegisterCallback(twin)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, h.Callbacks(), 1)
}

func TestHolder_OwnershipMismatch(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	basic := mustHolder[*BasicEvent](t, rt)
	secondary := mustHolder[*SecondaryEvent](t, rt)
	cb := mustCallback(t, d, basic, "a", 1, false, &recorder{})

	_, err := secondary.register(cb)

	assert.True(t, isCode(err, ErrOwnershipMismatch))
}

func TestHolder_UnregisterWithoutChangeKeepsTable(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	h := mustHolder[*BasicEvent](t, rt)
	rec := &recorder{}
	_, err := d.RegisterCallback(mustCallback(t, d, h, "a", 1, false, rec))
	require.NoError(t, err)

	before, err := h.Baked()
	require.NoError(t, err)

	ok, err := d.UnregisterCallback(mustCallback(t, d, h, "missing", 1, false, rec))
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := h.Baked()
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestHolder_SkipOnCancelledFlag(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	h := mustHolder[*SampleEvent](t, rt)
	rec := &recorder{}

	_, err := d.RegisterCallback(mustCallback(t, d, h, "a", 1, false, rec))
	require.NoError(t, err)
	b, err := h.Baked()
	require.NoError(t, err)
	assert.True(t, b.SkipOnCancelled())

	_, err = d.RegisterCallback(mustCallback(t, d, h, "b", 1, true, rec))
	require.NoError(t, err)
	b, err = h.Baked()
	require.NoError(t, err)
	assert.False(t, b.SkipOnCancelled())
}

func TestHolder_DeadCallbackIsNotRegistered(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	h := mustHolder[*BasicEvent](t, rt)
	cb := mustCallback(t, d, h, "a", 1, false, &recorder{}).WithLiveness(func() bool { return false })

	ok, err := d.RegisterCallback(cb)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, h.IsEmpty())
}

func TestHolder_LivenessFlipBetweenDispatches(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	rec := &recorder{}
	alive := true

	_, err := d.RegisterEvents(&basicListener{rec: rec}, WhileAlive(func() bool { return alive }))
	require.NoError(t, err)

	require.NoError(t, rt.Dispatch(&BasicEvent{}))
	assert.Equal(t, []string{"basic"}, rec.list())

	alive = false
	require.NoError(t, d.InvalidateLiveness())
	require.NoError(t, rt.Dispatch(&BasicEvent{}))

	assert.Equal(t, []string{"basic"}, rec.list())
	assert.True(t, mustHolder[*BasicEvent](t, rt).IsEmpty())
}

func TestHolder_LivenessIsNotReevaluatedWithoutInvalidation(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	rec := &recorder{}
	alive := true

	_, err := d.RegisterEvents(&basicListener{rec: rec}, WhileAlive(func() bool { return alive }))
	require.NoError(t, err)
	require.NoError(t, rt.Dispatch(&BasicEvent{}))

	alive = false
	require.NoError(t, rt.Dispatch(&BasicEvent{}))

	assert.Equal(t, []string{"basic", "basic"}, rec.list())
}

type messageListener struct {
	rec *recorder
}

func (l *messageListener) OnMessage(e *MessageEvent) { l.rec.add("message") }

func TestHolder_LivenessPredicateMayInspectHolders(t *testing.T) {
	tests := []struct {
		name     string
		listener func(rec *recorder) any
		event    func() Event
		want     string
	}{
		{
			name:     "own holder",
			listener: func(rec *recorder) any { return &basicListener{rec: rec} },
			event:    func() Event { return &BasicEvent{} },
			want:     "basic",
		},
		{
			name:     "ancestor holder",
			listener: func(rec *recorder) any { return &messageListener{rec: rec} },
			event:    func() Event { return &ChatEvent{} },
			want:     "message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newTestRuntime(t)
			d := rt.Active()
			rec := &recorder{}
			parent := mustHolder[*MessageEvent](t, rt)
			child := mustHolder[*ChatEvent](t, rt)
			own := mustHolder[*BasicEvent](t, rt)
			var checks atomic.Int32

			_, err := d.RegisterEvents(tt.listener(rec), WhileAlive(func() bool {
				checks.Add(1)
				_ = own.IsEmpty()
				_ = own.Callbacks()
				_ = parent.Callbacks()
				_ = child.IsEmpty()
				return true
			}))
			require.NoError(t, err)

			done := make(chan error, 1)
			go func() { done <- rt.Dispatch(tt.event()) }()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("dispatch blocked while evaluating liveness")
			}

			assert.Equal(t, []string{tt.want}, rec.list())
			assert.Positive(t, checks.Load())
		})
	}
}

func TestHolder_DeadAncestorCallbackIsPurgedByChildRebuild(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	rec := &recorder{}
	alive := true

	_, err := d.RegisterEvents(&messageListener{rec: rec}, WhileAlive(func() bool { return alive }))
	require.NoError(t, err)

	require.NoError(t, rt.Dispatch(&WhisperEvent{}))
	assert.Equal(t, []string{"message"}, rec.list())

	alive = false
	require.NoError(t, d.InvalidateLiveness())
	require.NoError(t, rt.Dispatch(&WhisperEvent{}))

	assert.Equal(t, []string{"message"}, rec.list())
	assert.Empty(t, mustHolder[*MessageEvent](t, rt).Callbacks())
}

func TestHolder_InvalidateLivenessRebuildsWithNewGeneration(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	h := mustHolder[*BasicEvent](t, rt)

	before, err := h.Baked()
	require.NoError(t, err)
	require.NoError(t, d.InvalidateLiveness())
	after, err := h.Baked()
	require.NoError(t, err)

	assert.NotSame(t, before, after)
	assert.Equal(t, before.Generation()+1, after.Generation())
}

func TestHolder_EnsureBaked(t *testing.T) {
	rt := newTestRuntime(t)
	h := mustHolder[*BasicEvent](t, rt)

	assert.Nil(t, h.baked.Load())
	require.NoError(t, h.EnsureBaked())
	assert.NotNil(t, h.baked.Load())
}

func TestHolder_DispatchTypeChecks(t *testing.T) {
	rt := newTestRuntime(t)
	h := mustHolder[*BasicEvent](t, rt)

	assert.True(t, isCode(h.Dispatch(&SecondaryEvent{}), ErrTypeMismatch))
	assert.True(t, isCode(h.Dispatch(nil), ErrNilEvent))
	var typedNil *BasicEvent
	assert.True(t, isCode(h.Dispatch(typedNil), ErrNilEvent))
	assert.NoError(t, h.Dispatch(&BasicEvent{}))
}

func TestHolder_Flags(t *testing.T) {
	rt := newTestRuntime(t)

	chat := mustHolder[*ChatEvent](t, rt)
	assert.True(t, chat.IsDelegate())
	assert.True(t, chat.IsCancellable())
	assert.False(t, chat.IsAbstract())
	assert.Same(t, mustHolder[*MessageEvent](t, rt), chat.Parent())

	abstract := mustHolder[*AbstractEvent](t, rt)
	assert.True(t, abstract.IsAbstract())
	assert.False(t, abstract.IsCancellable())
	assert.Nil(t, abstract.Parent())
}

func TestHolder_ConcurrentRegisterAndDispatch(t *testing.T) {
	rt := newTestRuntime(t)
	d := rt.Active()
	h := mustHolder[*BasicEvent](t, rt)
	rec := &recorder{}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			cb := mustCallback(t, d, h, "cb", i, false, rec)
			_, _ = d.RegisterCallback(cb)
		}(i)
		go func() {
			defer wg.Done()
			_ = rt.Dispatch(&BasicEvent{})
		}()
	}
	wg.Wait()

	assert.Len(t, h.Callbacks(), 16)
	b, err := h.Baked()
	require.NoError(t, err)
	assert.Equal(t, 16, b.Len())
	for i := 1; i < b.Len(); i++ {
		assert.GreaterOrEqual(t, b.Callbacks()[i-1].Priority(), b.Callbacks()[i].Priority())
	}
}

func TestHolder_ChildrenAreWeak(t *testing.T) {
	rt := newTestRuntime(t)
	parent := mustHolder[*MessageEvent](t, rt)
	regs := &rt.DefaultScope().regs

	child, err := regs.holder(mustDescribe(t, &ChatEvent{}))
	require.NoError(t, err)
	require.Len(t, parent.children, 1)

	// Drop every strong reference to the child.
	regs.mu.Lock()
	for k := range regs.holders {
		if k == child.info.typ {
			delete(regs.holders, k)
		}
	}
	regs.mu.Unlock()
	child = nil
	runtime.GC()
	runtime.GC()

	parent.mu.Lock()
	kids := parent.liveChildren()
	parent.mu.Unlock()
	assert.Empty(t, kids)
}
