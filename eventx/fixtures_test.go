package eventx

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/eventcraft/errx"
	"github.com/Abraxas-365/eventcraft/logx"
)

type BasicEvent struct {
	Base
	Value int
}

type SecondaryEvent struct {
	Base
}

type SampleEvent struct {
	CancellableBase
	Log []string
}

type MessageEvent struct {
	CancellableBase
	Text string
}

type ChatEvent struct {
	MessageEvent `eventx:"delegate"`
	Channel      string
}

type WhisperEvent struct {
	ChatEvent `eventx:"delegate"`
	To        string
}

type AbstractEvent struct {
	Base `eventx:"abstract"`
}

type testScope struct{ name string }

func (s testScope) ScopeName() string { return s.name }

// recorder collects handler calls in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// sampleListener has two handlers for SampleEvent; OnB runs for cancelled
// occurrences and records the flag it observes.
type sampleListener struct {
	rec    *recorder
	cancel bool
}

func (l *sampleListener) OnA(e *SampleEvent) {
	l.rec.add("A")
	if l.cancel {
		e.SetCancelled(true)
	}
}

func (l *sampleListener) OnB(e *SampleEvent) {
	if e.IsCancelled() {
		l.rec.add("B:cancelled")
		return
	}
	l.rec.add("B")
}

func (l *sampleListener) HandlerTags() map[string]string {
	return map[string]string{"OnB": "priority=999,ignoreCancelled"}
}

type basicListener struct {
	rec *recorder
}

func (l *basicListener) OnBasic(e *BasicEvent) error {
	l.rec.add("basic")
	if e.Value < 0 {
		return errors.New("negative value")
	}
	return nil
}

func (l *basicListener) OnSecondary(e *SecondaryEvent) {
	l.rec.add("secondary")
}

// Not handlers: wrong prefix, no event parameter.
func (l *basicListener) Handle(e *BasicEvent) {}
func (l *basicListener) OnClose()             {}

func newTestRuntime(t *testing.T, opts ...RuntimeOption) *Runtime {
	t.Helper()
	opts = append([]RuntimeOption{WithLogger(logx.Nop())}, opts...)
	rt, err := NewRuntime(opts...)
	require.NoError(t, err)
	return rt
}

func mustHolder[T Event](t *testing.T, rt *Runtime) *Holder {
	t.Helper()
	h, err := HolderFor[T](rt)
	require.NoError(t, err)
	return h
}

func mustCallback(t *testing.T, d *Dispatcher, h *Holder, key string, priority int, ignoreCancelled bool, rec *recorder) *Callback {
	t.Helper()
	opts := []HandlerOption{Priority(priority), WithKey(key)}
	if ignoreCancelled {
		opts = append(opts, IgnoreCancelled())
	}
	et, err := h.EventType()
	require.NoError(t, err)
	cb, err := d.NewCallback(nil, et, func(Event) error {
		rec.add(key)
		return nil
	}, opts...)
	require.NoError(t, err)
	return cb
}

func mustDescribe(t *testing.T, e Event) *eventType {
	t.Helper()
	info, err := describe(reflect.TypeOf(e))
	require.NoError(t, err)
	return info
}

func isCode(err error, code errx.Code) bool {
	return errx.IsCode(err, code)
}
