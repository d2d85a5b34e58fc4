package graph

import (
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// Gain multiplies its input by an automated gain.
type Gain struct {
	Gain *Param

	src beep.Streamer
	cur cursor
}

// NewGain wraps src. If gain is nil a unity Param is created.
func NewGain(ctx *Context, src beep.Streamer, gain *Param) *Gain {
	if gain == nil {
		gain = NewParam(1)
	}
	return &Gain{Gain: gain, src: src, cur: cursor{ctx: ctx}}
}

// Stream implements [beep.Streamer]. It never drains.
func (g *Gain) Stream(samples [][2]float64) (int, bool) {
	g.cur.begin()
	fill(g.src, samples)
	for i := range samples {
		v := g.Gain.ValueAt(g.cur.at(i))
		samples[i][0] *= v
		samples[i][1] *= v
	}
	g.cur.advance(len(samples))
	return len(samples), true
}

// Err implements [beep.Streamer].
func (g *Gain) Err() error { return g.src.Err() }

// NewPanner places src in the stereo field. pan is clamped to [-1, 1], where
// -1 is hard left.
func NewPanner(src beep.Streamer, pan float64) *effects.Pan {
	return &effects.Pan{Streamer: src, Pan: min(max(pan, -1), 1)}
}

// Scale applies a constant linear gain v to src. A v of zero or less
// silences it.
func Scale(src beep.Streamer, v float64) *effects.Volume {
	if v <= 0 {
		return &effects.Volume{Streamer: src, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: src, Base: 2, Volume: math.Log2(v)}
}
