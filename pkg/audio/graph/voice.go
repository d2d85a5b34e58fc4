package graph

import (
	"math"
	"sync/atomic"

	"github.com/gopxl/beep"
)

// Voice is one playable sound: a chain of nodes ending in out, with a start
// time and an optional stop time. After its stop time a voice drains, and
// the bus mixer releases it together with every node in its chain.
//
// Gain and Frequency expose the voice's main automation params so callers
// and tests can inspect the programmed envelope. Frequency is nil for voices
// without a pitched source.
type Voice struct {
	Gain      *Param
	Frequency *Param

	ctx     *Context
	out     beep.Streamer
	cur     cursor
	start   float64
	stop    float64
	started atomic.Bool
	ended   atomic.Bool
}

// NewVoice wraps out as a voice that starts at time start. The voice does
// not play until [Voice.Start] is called.
func NewVoice(ctx *Context, out beep.Streamer, start float64) *Voice {
	return &Voice{
		ctx:   ctx,
		out:   out,
		cur:   cursor{ctx: ctx},
		start: start,
		stop:  math.Inf(1),
	}
}

// StartTime returns the time the voice was scheduled to start.
func (v *Voice) StartTime() float64 { return v.start }

// StopTime returns the scheduled stop time, or +Inf if the voice plays
// until the process ends.
func (v *Voice) StopTime() float64 { return v.stop }

// Stop schedules the voice to end at time at. It must be called before
// [Voice.Start].
func (v *Voice) Stop(at float64) *Voice {
	v.stop = at
	return v
}

// Start publishes the voice to the master bus. Calling it again is a no-op.
func (v *Voice) Start() {
	if v.started.Swap(true) {
		return
	}
	v.ctx.Attach(v)
}

// Ended reports whether the voice has played past its stop time.
func (v *Voice) Ended() bool { return v.ended.Load() }

// Stream implements [beep.Streamer]. It returns fewer frames than requested
// on the block containing the stop frame and drains on the next call.
func (v *Voice) Stream(samples [][2]float64) (int, bool) {
	if v.ended.Load() {
		return 0, false
	}
	v.cur.begin()

	n := len(samples)
	if !math.IsInf(v.stop, 1) {
		left := v.ctx.frameAt(v.stop) - v.cur.pos
		if left <= 0 {
			v.ended.Store(true)
			return 0, false
		}
		if left <= int64(n) {
			n = int(left)
			v.ended.Store(true)
		}
	}

	fill(v.out, samples[:n])
	v.cur.advance(n)
	return n, true
}

// Err implements [beep.Streamer].
func (v *Voice) Err() error { return v.out.Err() }
