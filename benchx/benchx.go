// Package benchx measures dispatch throughput of an eventx runtime.
//
// A Bench registers a counting handler and two static handlers for
// SampleEvent, then dispatches the event a number of times either through the
// runtime, which resolves the holder for every event, or straight through the
// cached holder. After each run the handler counters are checked so a broken
// cancellation path fails the run instead of producing a fast number.
package benchx

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Abraxas-365/eventcraft/asyncx"
	"github.com/Abraxas-365/eventcraft/errx"
	"github.com/Abraxas-365/eventcraft/eventx"
	"github.com/Abraxas-365/eventcraft/fmtx"
	"github.com/Abraxas-365/eventcraft/validatex"
)

var ErrorRegistry = errx.NewRegistry("BENCHX")

var (
	ErrCounterMismatch = ErrorRegistry.Register("COUNTER_MISMATCH", errx.TypeInternal, http.StatusInternalServerError, "handler counters do not match the number of dispatches")
	ErrUnknownMode     = ErrorRegistry.Register("UNKNOWN_MODE", errx.TypeValidation, http.StatusBadRequest, "unknown benchmark mode")
)

// Dispatch modes.
const (
	ModeRuntime = "runtime"
	ModeHolder  = "holder"
)

// Invokers selectable by name.
const (
	InvokerReflect = "reflect"
	InvokerFast    = "fast"
)

// Options configures a Bench.
type Options struct {
	Times     int    `validatex:"required,min=1"`
	Invoker   string `validatex:"required,oneof=reflect fast"`
	Workers   int    `validatex:"required,min=1,max=256"`
	Cancelled bool
}

// DefaultOptions dispatches a million events on one goroutine.
func DefaultOptions() Options {
	return Options{
		Times:   1_000_000,
		Invoker: InvokerReflect,
		Workers: 1,
	}
}

// SampleEvent is the event every run dispatches.
type SampleEvent struct {
	eventx.CancellableBase
}

type counterHandler struct {
	received  atomic.Int64
	cancelled atomic.Int64
}

func (h *counterHandler) OnReceive(*SampleEvent) {
	h.received.Add(1)
}

func (h *counterHandler) OnReceiveCancelled(*SampleEvent) {
	h.cancelled.Add(1)
}

func (h *counterHandler) HandlerTags() map[string]string {
	return map[string]string{"OnReceiveCancelled": "ignoreCancelled"}
}

func (h *counterHandler) reset() {
	h.received.Store(0)
	h.cancelled.Store(0)
}

func passive(*SampleEvent) {}

func passiveCancelled(*SampleEvent) {}

// Result is one measured run.
type Result struct {
	Mode    string        `json:"mode" fmtx:"mode"`
	Invoker string        `json:"invoker" fmtx:"invoker"`
	Times   int           `json:"times" fmtx:"dispatches"`
	Workers int           `json:"workers" fmtx:"workers"`
	Took    time.Duration `json:"took" fmtx:"took"`
	PerOp   time.Duration `json:"per_op" fmtx:"per op"`
}

// Bench owns a runtime with the benchmark handlers registered.
type Bench struct {
	rt      *eventx.Runtime
	holder  *eventx.Holder
	handler *counterHandler
	opts    Options

	// WarmUp is how long construction took, including two short runs.
	WarmUp time.Duration
}

// New validates opts, builds a runtime with rtOpts and warms it up.
func New(ctx context.Context, opts Options, rtOpts ...eventx.RuntimeOption) (*Bench, error) {
	if err := validatex.Validate(opts); err != nil {
		return nil, err
	}
	timer := fmtx.StartTimer("warm up")

	if opts.Invoker == InvokerFast {
		inv := eventx.NewFastInvoker()
		eventx.Accelerate[*counterHandler, *SampleEvent](inv)
		rtOpts = append(rtOpts, eventx.WithPolicy(eventx.WithInvoker(inv)))
	}
	rt, err := eventx.NewRuntime(rtOpts...)
	if err != nil {
		return nil, err
	}

	b := &Bench{rt: rt, handler: &counterHandler{}, opts: opts}
	d := rt.Active()
	if _, err := d.RegisterEvents(b.handler); err != nil {
		return nil, err
	}
	if _, err := d.RegisterFuncs(
		eventx.On(passive),
		eventx.On(passiveCancelled, eventx.IgnoreCancelled()),
	); err != nil {
		return nil, err
	}
	if b.holder, err = eventx.HolderFor[*SampleEvent](rt); err != nil {
		return nil, err
	}

	for _, n := range []int{1, 10} {
		if _, err := b.run(ctx, ModeRuntime, n, 1); err != nil {
			return nil, err
		}
	}
	b.WarmUp = timer.Elapsed()
	return b, nil
}

// Runtime returns the runtime under test.
func (b *Bench) Runtime() *eventx.Runtime { return b.rt }

// Run dispatches the configured number of events in mode.
func (b *Bench) Run(ctx context.Context, mode string) (Result, error) {
	return b.run(ctx, mode, b.opts.Times, b.opts.Workers)
}

// RunAll runs every mode in a fixed order.
func (b *Bench) RunAll(ctx context.Context) ([]Result, error) {
	var results []Result
	for _, mode := range []string{ModeRuntime, ModeHolder} {
		r, err := b.Run(ctx, mode)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (b *Bench) run(ctx context.Context, mode string, times, workers int) (Result, error) {
	var dispatch func(eventx.Event) error
	switch mode {
	case ModeRuntime:
		dispatch = b.rt.Dispatch
	case ModeHolder:
		dispatch = b.holder.Dispatch
	default:
		return Result{}, ErrorRegistry.New(ErrUnknownMode).WithDetail("mode", mode)
	}

	workers = min(workers, times)
	b.handler.reset()
	timer := fmtx.StartTimer(mode)
	err := asyncx.ForEach(ctx, split(times, workers), workers, func(ctx context.Context, n int) error {
		var shared *SampleEvent
		if b.opts.Cancelled {
			shared = &SampleEvent{}
			shared.SetCancelled(true)
		}
		for range n {
			e := shared
			if e == nil {
				e = &SampleEvent{}
			}
			if err := dispatch(e); err != nil {
				return err
			}
		}
		return ctx.Err()
	})
	took := timer.Elapsed()
	if err != nil {
		return Result{}, err
	}
	if err := b.check(times); err != nil {
		return Result{}, err
	}

	return Result{
		Mode:    mode,
		Invoker: b.opts.Invoker,
		Times:   times,
		Workers: workers,
		Took:    took,
		PerOp:   took / time.Duration(times),
	}, nil
}

func (b *Bench) check(times int) error {
	want := int64(times)
	if b.opts.Cancelled {
		want = 0
	}
	received, cancelled := b.handler.received.Load(), b.handler.cancelled.Load()
	if received == want && cancelled == int64(times) {
		return nil
	}
	return ErrorRegistry.New(ErrCounterMismatch).
		WithDetail("received", received).
		WithDetail("received_want", want).
		WithDetail("ignore_cancelled", cancelled).
		WithDetail("ignore_cancelled_want", times)
}

// split divides total into n near-equal shares.
func split(total, n int) []int {
	shares := make([]int, n)
	for i := range shares {
		shares[i] = total / n
		if i < total%n {
			shares[i]++
		}
	}
	return shares
}
