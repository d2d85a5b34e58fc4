package graph

import "math"

// Wave selects an oscillator waveform.
type Wave int

const (
	Sine Wave = iota
	Square
	Sawtooth
	Triangle
)

// String returns the lower-case waveform name.
func (w Wave) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	case Triangle:
		return "triangle"
	default:
		return "unknown"
	}
}

// Oscillator is a periodic source whose pitch follows the Frequency param.
// Its output is mono, duplicated to both channels, with amplitude 1.
type Oscillator struct {
	Wave      Wave
	Frequency *Param

	cur   cursor
	phase float64
}

// NewOscillator returns an oscillator at a constant frequency in Hz.
func NewOscillator(ctx *Context, wave Wave, freq float64) *Oscillator {
	return &Oscillator{
		Wave:      wave,
		Frequency: NewParam(freq),
		cur:       cursor{ctx: ctx},
	}
}

// Stream implements [beep.Streamer]. An oscillator never drains.
func (o *Oscillator) Stream(samples [][2]float64) (int, bool) {
	o.cur.begin()
	rate := float64(o.cur.ctx.rate)
	for i := range samples {
		v := o.sample()
		samples[i] = [2]float64{v, v}

		f := o.Frequency.ValueAt(o.cur.at(i))
		o.phase += f / rate
		o.phase -= math.Floor(o.phase)
	}
	o.cur.advance(len(samples))
	return len(samples), true
}

// Err implements [beep.Streamer].
func (o *Oscillator) Err() error { return nil }

func (o *Oscillator) sample() float64 {
	p := o.phase
	switch o.Wave {
	case Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*p - 1
	case Triangle:
		if p < 0.5 {
			return 4*p - 1
		}
		return 3 - 4*p
	default:
		return math.Sin(2 * math.Pi * p)
	}
}
