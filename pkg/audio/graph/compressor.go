package graph

import (
	"math"

	"github.com/gopxl/beep"
)

// Compressor is a stereo-linked dynamics compressor with a soft knee.
// It keeps many simultaneous one-shot voices from clipping the output.
type Compressor struct {
	ThresholdDB float64
	KneeDB      float64
	Ratio       float64

	// Attack and Release are time constants in seconds.
	Attack  float64
	Release float64

	src       beep.Streamer
	rate      float64
	reduction float64 // current gain reduction in dB, <= 0
}

// NewCompressor returns a compressor with the master bus settings:
// threshold -24 dB, knee 30 dB, ratio 12:1, attack 3 ms, release 250 ms.
func NewCompressor(rate beep.SampleRate, src beep.Streamer) *Compressor {
	return &Compressor{
		ThresholdDB: -24,
		KneeDB:      30,
		Ratio:       12,
		Attack:      0.003,
		Release:     0.25,
		src:         src,
		rate:        float64(rate),
	}
}

// Stream implements [beep.Streamer]. It never drains.
func (c *Compressor) Stream(samples [][2]float64) (int, bool) {
	fill(c.src, samples)

	att := smoothing(c.Attack, c.rate)
	rel := smoothing(c.Release, c.rate)
	for i := range samples {
		peak := max(math.Abs(samples[i][0]), math.Abs(samples[i][1]))
		target := 0.0
		if peak > 0 {
			x := 20 * math.Log10(peak)
			target = c.curve(x) - x
		}

		coef := rel
		if target < c.reduction {
			coef = att
		}
		c.reduction = target + coef*(c.reduction-target)

		g := math.Pow(10, c.reduction/20)
		samples[i][0] *= g
		samples[i][1] *= g
	}
	return len(samples), true
}

// Err implements [beep.Streamer].
func (c *Compressor) Err() error { return c.src.Err() }

// curve maps an input level in dB to the output level in dB.
func (c *Compressor) curve(x float64) float64 {
	t, w := c.ThresholdDB, c.KneeDB
	r := c.Ratio
	if r < 1 {
		r = 1
	}
	d := x - t
	switch {
	case 2*d < -w:
		return x
	case w > 0 && 2*math.Abs(d) <= w:
		k := d + w/2
		return x + (1/r-1)*k*k/(2*w)
	default:
		return t + d/r
	}
}

func smoothing(tc, rate float64) float64 {
	if tc <= 0 {
		return 0
	}
	return math.Exp(-1 / (tc * rate))
}
