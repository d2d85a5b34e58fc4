package graph

import (
	"math"

	"github.com/gopxl/beep"
)

// FilterType selects the biquad response.
type FilterType int

const (
	Lowpass FilterType = iota
	Highpass
	Bandpass
)

// DefaultQ returns the quality factor a filter of type t uses unless told
// otherwise: Butterworth for low and high pass, unity for band pass.
func (t FilterType) DefaultQ() float64 {
	if t == Bandpass {
		return 1
	}
	return math.Sqrt2 / 2
}

// Biquad is a second-order IIR filter using the RBJ cookbook formulas.
//
// The cutoff follows the Frequency param. When Modulation is set, its left
// channel is added to the cutoff sample by sample, which is how an LFO sweeps
// the filter.
type Biquad struct {
	Type       FilterType
	Frequency  *Param
	Q          float64
	Modulation beep.Streamer

	src beep.Streamer
	cur cursor
	mod [][2]float64

	lastFreq           float64
	b0, b1, b2, a1, a2 float64
	z1, z2             [2]float64
}

// NewBiquad filters src with a cutoff (or center) of freq Hz.
func NewBiquad(ctx *Context, src beep.Streamer, typ FilterType, freq float64) *Biquad {
	return &Biquad{
		Type:      typ,
		Frequency: NewParam(freq),
		Q:         typ.DefaultQ(),
		src:       src,
		cur:       cursor{ctx: ctx},
		lastFreq:  -1,
	}
}

// Stream implements [beep.Streamer]. It pads with silence once its source
// is exhausted and never drains.
func (f *Biquad) Stream(samples [][2]float64) (int, bool) {
	f.cur.begin()
	fill(f.src, samples)

	var mod [][2]float64
	if f.Modulation != nil {
		if cap(f.mod) < len(samples) {
			f.mod = make([][2]float64, len(samples))
		}
		mod = f.mod[:len(samples)]
		fill(f.Modulation, mod)
	}

	for i := range samples {
		freq := f.Frequency.ValueAt(f.cur.at(i))
		if mod != nil {
			freq += mod[i][0]
		}
		if freq != f.lastFreq {
			f.design(freq)
		}
		for c := range 2 {
			in := samples[i][c]
			out := in*f.b0 + f.z1[c]
			f.z1[c] = in*f.b1 + f.z2[c] - f.a1*out
			f.z2[c] = in*f.b2 - f.a2*out
			samples[i][c] = out
		}
	}
	f.cur.advance(len(samples))
	return len(samples), true
}

// Err implements [beep.Streamer].
func (f *Biquad) Err() error { return f.src.Err() }

func (f *Biquad) design(freq float64) {
	f.lastFreq = freq

	fs := float64(f.cur.ctx.rate)
	freq = min(max(freq, 10), fs/2-1)
	q := f.Q
	if q <= 0 {
		q = f.Type.DefaultQ()
	}

	w0 := 2 * math.Pi * freq / fs
	sinW0, cosW0 := math.Sin(w0), math.Cos(w0)
	alpha := sinW0 / (2 * q)

	var b0, b1, b2 float64
	switch f.Type {
	case Highpass:
		b0 = (1 + cosW0) / 2
		b1 = -(1 + cosW0)
		b2 = (1 + cosW0) / 2
	case Bandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	default:
		b0 = (1 - cosW0) / 2
		b1 = 1 - cosW0
		b2 = (1 - cosW0) / 2
	}
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	inv := 1 / a0
	f.b0, f.b1, f.b2 = b0*inv, b1*inv, b2*inv
	f.a1, f.a2 = a1*inv, a2*inv
}

// fill pulls len(dst) frames from s and zeroes whatever s did not provide.
func fill(s beep.Streamer, dst [][2]float64) {
	n := 0
	for n < len(dst) {
		k, ok := s.Stream(dst[n:])
		n += k
		if !ok || k == 0 {
			break
		}
	}
	clear(dst[n:])
}
