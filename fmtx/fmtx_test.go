package fmtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Abraxas-365/eventcraft/fmtx"
)

type row struct {
	Event    string `fmtx:"event"`
	Count    int    `fmtx:"callbacks"`
	Took     time.Duration
	Tags     []string
	Internal string `fmtx:"-"`
	hidden   int
}

func TestTable(t *testing.T) {
	out := fmtx.Table([]row{
		{Event: "Chat", Count: 2, Took: 1500 * time.Nanosecond, Tags: []string{"a"}},
		{Event: "Whisper", Count: 12, Took: 2 * time.Millisecond},
	})

	expected := strings.Join([]string{
		"event   | callbacks | Took    | Tags",
		"------------------------------------",
		"Chat    | 2         | 1.500µs | [1] ",
		"Whisper | 12        | 2.000ms | [0] ",
	}, "\n")
	assert.Equal(t, expected, out)
}

func TestTable_Pointers(t *testing.T) {
	out := fmtx.Table([]*row{{Event: "x"}, nil})

	assert.Equal(t, 3, len(strings.Split(out, "\n")))
}

func TestTable_Truncates(t *testing.T) {
	out := fmtx.TableWithOptions([]row{{Event: "github.com/acme/game/events.PlayerJoined"}}, fmtx.TableOptions{MaxColumnWidth: 15})

	assert.Contains(t, out, "...PlayerJoined")
}

func TestTable_Errors(t *testing.T) {
	assert.Equal(t, "Error: not a slice or array", fmtx.Table(3))
	assert.Equal(t, "Error: slice elements must be structs", fmtx.Table([]int{1}))
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		850 * time.Nanosecond:    "850ns",
		1234 * time.Nanosecond:   "1.234µs",
		12500 * time.Microsecond: "12.500ms",
		3 * time.Second:          "3.000s",
	}
	for d, want := range tests {
		assert.Equal(t, want, fmtx.FormatDuration(d))
	}
}

func TestTimer(t *testing.T) {
	timer := fmtx.StartTimer("bake")

	assert.GreaterOrEqual(t, timer.Elapsed(), time.Duration(0))
	assert.True(t, strings.HasPrefix(timer.Stop(), "bake took "))
}
