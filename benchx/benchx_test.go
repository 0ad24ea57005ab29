package benchx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/eventcraft/errx"
	"github.com/Abraxas-365/eventcraft/eventx"
	"github.com/Abraxas-365/eventcraft/logx"
	"github.com/Abraxas-365/eventcraft/storex"
	"github.com/Abraxas-365/eventcraft/validatex"
)

func newBench(t *testing.T, opts Options) *Bench {
	t.Helper()
	b, err := New(context.Background(), opts, eventx.WithLogger(logx.Nop()))
	require.NoError(t, err)
	return b
}

func TestBench_Run(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"reflect", Options{Times: 500, Invoker: InvokerReflect, Workers: 1}},
		{"fast", Options{Times: 500, Invoker: InvokerFast, Workers: 1}},
		{"cancelled", Options{Times: 500, Invoker: InvokerReflect, Workers: 1, Cancelled: true}},
		{"parallel", Options{Times: 1001, Invoker: InvokerFast, Workers: 4}},
		{"parallel cancelled", Options{Times: 1001, Invoker: InvokerReflect, Workers: 4, Cancelled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBench(t, tt.opts)

			results, err := b.RunAll(context.Background())
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, ModeRuntime, results[0].Mode)
			assert.Equal(t, ModeHolder, results[1].Mode)
			for _, r := range results {
				assert.Equal(t, tt.opts.Times, r.Times)
				assert.Equal(t, tt.opts.Workers, r.Workers)
				assert.Equal(t, tt.opts.Invoker, r.Invoker)
			}
		})
	}
}

func TestBench_RegistersFourCallbacks(t *testing.T) {
	b := newBench(t, optionsWith(10))

	h, err := eventx.HolderFor[*SampleEvent](b.Runtime())
	require.NoError(t, err)
	assert.Len(t, h.Callbacks(), 4)
}

func TestBench_DetectsBrokenCounters(t *testing.T) {
	b := newBench(t, optionsWith(10))
	_, err := b.rt.Active().RegisterFuncs(eventx.On(func(*SampleEvent) {
		b.handler.received.Add(1)
	}))
	require.NoError(t, err)

	_, err = b.Run(context.Background(), ModeHolder)
	assert.True(t, errx.IsCode(err, ErrCounterMismatch))
}

func TestBench_UnknownMode(t *testing.T) {
	b := newBench(t, optionsWith(10))

	_, err := b.Run(context.Background(), "jit")
	assert.True(t, errx.IsCode(err, ErrUnknownMode))
}

func TestBench_CancelledContext(t *testing.T) {
	b := newBench(t, optionsWith(10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Run(ctx, ModeRuntime)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_ValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero times", Options{Invoker: InvokerReflect, Workers: 1}},
		{"unknown invoker", Options{Times: 1, Invoker: "jit", Workers: 1}},
		{"no workers", Options{Times: 1, Invoker: InvokerReflect}},
		{"too many workers", Options{Times: 1, Invoker: InvokerReflect, Workers: 1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts)
			assert.True(t, errx.IsCode(err, validatex.ErrInvalid))
		})
	}
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []int{4, 3, 3}, split(10, 3))
	assert.Equal(t, []int{5}, split(5, 1))
	assert.Equal(t, []int{1, 1}, split(2, 2))
}

func optionsWith(times int) Options {
	opts := DefaultOptions()
	opts.Times = times
	return opts
}

func TestBench_SaveRecords(t *testing.T) {
	ctx := context.Background()
	opts := optionsWith(20)
	opts.Cancelled = true
	b := newBench(t, opts)
	results, err := b.RunAll(ctx)
	require.NoError(t, err)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	records := b.Records(results, at)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.Equal(t, at.UTC(), records[0].RecordedAt)
	assert.True(t, records[1].Cancelled)
	assert.Equal(t, results[1].Took, records[1].Took())

	repo := storex.NewMemory[Record]()
	require.NoError(t, Save(ctx, repo, records))

	page, err := repo.Paginate(ctx, storex.DefaultPaginationOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page.Total)
	assert.ElementsMatch(t, records, page.Data)
}
