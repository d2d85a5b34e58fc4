package horror

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"

	"github.com/MrWong99/necromancer/pkg/audio/graph"
)

// Kind names a sound effect.
type Kind string

// Effect kinds.
const (
	KindAmbience   Kind = "ambience"
	KindWhisper    Kind = "whisper"
	KindGlitch     Kind = "glitch"
	KindTypingTick Kind = "typing"
	KindHeartbeat  Kind = "heartbeat"
	KindScream     Kind = "scream"
	KindGrowl      Kind = "growl"
)

// Kinds lists the one-shot effects that can be requested by name.
var Kinds = []Kind{KindWhisper, KindGlitch, KindTypingTick, KindHeartbeat, KindScream, KindGrowl}

// ParseKind returns the one-shot effect named s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("horror: unknown effect %q", s)
}

// Envelope constants. The near-zero targets are where exponential decays
// end; they stay above [graph.MinExpValue].
const (
	silentGain = 0.001
	silentFreq = 0.01

	ambienceGain   = 0.15
	ambienceCutoff = 120

	whisperLength = 1500 * time.Millisecond
	whisperPeak   = 0.3

	glitchLength = 300 * time.Millisecond
	glitchGain   = 0.1

	typingLength = 50 * time.Millisecond
	typingGain   = 0.2
	typingCutoff = 800

	heartbeatLength = 500 * time.Millisecond
	heartbeatFreq   = 150
	heartbeatGain   = 0.5

	screamAttack = 100 * time.Millisecond
	screamLength = time.Second
	screamFreq   = 440
	screamPeak   = 1000
	screamGain   = 0.3

	growlNoise  = 2 * time.Second
	growlAttack = time.Second
	growlCutoff = 100
	growlLFO    = 8
	growlDepth  = 300
	growlGain   = 0.6
)

func secs(d time.Duration) float64 { return d.Seconds() }

// ambience is the endless drone of two detuned saws under a low lowpass.
func ambience(c *graph.Context, t float64) *graph.Voice {
	low := graph.NewOscillator(c, graph.Sawtooth, 55)
	high := graph.NewOscillator(c, graph.Sawtooth, 58)
	filter := graph.NewBiquad(c, beep.Mix(low, high), graph.Lowpass, ambienceCutoff)
	gain := graph.NewGain(c, filter, graph.NewParam(ambienceGain))

	v := graph.NewVoice(c, gain, t)
	v.Gain = gain.Gain
	v.Frequency = low.Frequency
	return v
}

// whisperShape draws the band centre in [800, 1300) Hz and the pan in
// [-1, 1).
func whisperShape(r graph.Rand) (center, pan float64) {
	center = 800 + r.Float64()*500
	pan = r.Float64()*2 - 1
	return center, pan
}

func whisper(c *graph.Context, r graph.Rand, t float64) *graph.Voice {
	rate := c.SampleRate()
	noise := graph.NewBufferSource(graph.NoiseBuffer(r, rate.N(whisperLength), 0.5), false)
	center, pan := whisperShape(r)
	filter := graph.NewBiquad(c, noise, graph.Bandpass, center)
	gain := graph.NewGain(c, graph.NewPanner(filter, pan), graph.NewParam(0))
	gain.Gain.
		SetValueAtTime(0, t).
		LinearRampToValueAtTime(whisperPeak, t+0.5).
		LinearRampToValueAtTime(0, t+secs(whisperLength))

	v := graph.NewVoice(c, gain, t).Stop(t + secs(whisperLength))
	v.Gain = gain.Gain
	v.Frequency = filter.Frequency
	return v
}

func glitchFreq(r graph.Rand) float64 { return 100 + r.Float64()*200 }

func glitch(c *graph.Context, r graph.Rand, t float64) *graph.Voice {
	osc := graph.NewOscillator(c, graph.Sawtooth, glitchFreq(r))
	gain := graph.NewGain(c, osc, graph.NewParam(glitchGain))
	gain.Gain.
		SetValueAtTime(glitchGain, t).
		ExponentialRampToValueAtTime(silentGain, t+secs(glitchLength))

	v := graph.NewVoice(c, gain, t).Stop(t + secs(glitchLength))
	v.Gain = gain.Gain
	v.Frequency = osc.Frequency
	return v
}

func typingTick(c *graph.Context, r graph.Rand, t float64) *graph.Voice {
	rate := c.SampleRate()
	noise := graph.NewBufferSource(graph.NoiseBuffer(r, rate.N(typingLength), 0.8), false)
	filter := graph.NewBiquad(c, noise, graph.Lowpass, typingCutoff)
	gain := graph.NewGain(c, filter, graph.NewParam(typingGain))

	v := graph.NewVoice(c, gain, t).Stop(t + secs(typingLength))
	v.Gain = gain.Gain
	v.Frequency = filter.Frequency
	return v
}

func heartbeat(c *graph.Context, t float64) *graph.Voice {
	end := t + secs(heartbeatLength)
	osc := graph.NewOscillator(c, graph.Sine, heartbeatFreq)
	osc.Frequency.
		SetValueAtTime(heartbeatFreq, t).
		ExponentialRampToValueAtTime(silentFreq, end)
	gain := graph.NewGain(c, osc, graph.NewParam(heartbeatGain))
	gain.Gain.
		SetValueAtTime(heartbeatGain, t).
		ExponentialRampToValueAtTime(silentGain, end)

	v := graph.NewVoice(c, gain, t).Stop(end)
	v.Gain = gain.Gain
	v.Frequency = osc.Frequency
	return v
}

func scream(c *graph.Context, t float64) *graph.Voice {
	osc := graph.NewOscillator(c, graph.Sawtooth, screamFreq)
	osc.Frequency.
		SetValueAtTime(screamFreq, t).
		ExponentialRampToValueAtTime(screamPeak, t+secs(screamAttack))
	gain := graph.NewGain(c, osc, graph.NewParam(0))
	gain.Gain.
		SetValueAtTime(0, t).
		LinearRampToValueAtTime(screamGain, t+secs(screamAttack)).
		ExponentialRampToValueAtTime(silentGain, t+secs(screamLength))

	v := graph.NewVoice(c, gain, t).Stop(t + secs(screamLength))
	v.Gain = gain.Gain
	v.Frequency = osc.Frequency
	return v
}

// growl is looping noise through a lowpass whose cutoff wobbles at 8 Hz.
// When d is shorter than the attack the decay simply lands first; the voice
// still ends at t+d.
func growl(c *graph.Context, r graph.Rand, t float64, d time.Duration) *graph.Voice {
	rate := c.SampleRate()
	end := t + secs(d)

	noise := graph.NewBufferSource(graph.NoiseBuffer(r, rate.N(growlNoise), 0.8), true)
	filter := graph.NewBiquad(c, noise, graph.Lowpass, growlCutoff)
	lfo := graph.NewOscillator(c, graph.Sine, growlLFO)
	filter.Modulation = graph.Scale(lfo, growlDepth)

	gain := graph.NewGain(c, filter, graph.NewParam(0))
	gain.Gain.
		SetValueAtTime(0, t).
		LinearRampToValueAtTime(growlGain, t+secs(growlAttack)).
		ExponentialRampToValueAtTime(silentGain, end)

	v := graph.NewVoice(c, gain, t).Stop(end)
	v.Gain = gain.Gain
	v.Frequency = filter.Frequency
	return v
}
