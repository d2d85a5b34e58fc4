// Package horror is the procedural audio engine: an ambient drone, one-shot
// effects such as whispers, screams and heartbeats, a smoothed master mute,
// and a demonic speech overlay with a growl layered underneath.
//
// Every play call is fire-and-forget. Each effect builds a fresh chain of
// graph nodes, schedules its own envelope and stop time, and is released by
// the master bus once it has played out. Calls made before [Engine.Initialize]
// or while muted are dropped rather than queued.
package horror

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"

	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/pkg/audio/device"
	"github.com/MrWong99/necromancer/pkg/audio/graph"
	"github.com/MrWong99/necromancer/pkg/provider/speech"
)

// DefaultSampleRate is the render rate used when none is configured.
const DefaultSampleRate beep.SampleRate = 44100

// MuteTimeConstant is the time constant of the master gain approach when
// muting or unmuting.
const MuteTimeConstant = 0.5

// Reasons recorded when an effect is dropped.
const (
	reasonUninitialized = "uninitialized"
	reasonMuted         = "muted"
	reasonDebounced     = "debounced"
)

// Engine owns the audio context and every effect played on it.
// All methods are safe for concurrent use and never block on audio output.
type Engine struct {
	rate    beep.SampleRate
	rnd     *lockedRand
	metrics *observe.Metrics
	guard   *Guard

	initMu sync.Mutex
	dev    device.Device
	ctx    atomic.Pointer[graph.Context]
	muted  atomic.Bool

	speechMu       sync.Mutex
	synth          speech.Synthesizer
	preferredVoice string
}

// Option is a functional option for [New].
type Option func(*Engine)

// WithDevice sets the output device started by [Engine.Initialize].
// Without it the engine renders to a [device.Null].
func WithDevice(d device.Device) Option {
	return func(e *Engine) { e.dev = d }
}

// WithSampleRate sets the render sample rate.
func WithSampleRate(r beep.SampleRate) Option {
	return func(e *Engine) {
		if r > 0 {
			e.rate = r
		}
	}
}

// WithRand sets the random source for noise and cosmetic jitter.
func WithRand(r graph.Rand) Option {
	return func(e *Engine) { e.rnd.r = r }
}

// WithSynthesizer sets the speech synthesizer. See also
// [Engine.SetSynthesizer].
func WithSynthesizer(s speech.Synthesizer) Option {
	return func(e *Engine) { e.synth = s }
}

// WithPreferredVoice sets the substring matched against voice names when
// choosing a voice for speech. The default is "Google US English".
func WithPreferredVoice(name string) Option {
	return func(e *Engine) { e.preferredVoice = name }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New returns an uninitialised engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		rate:           DefaultSampleRate,
		rnd:            &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))},
		guard:          NewGuard(),
		preferredVoice: "Google US English",
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Initialize creates the audio context, starts the output device and the
// ambient drone. Calling it again is a no-op. If the device cannot start the
// engine keeps running on a [device.Null] so effects still play out on
// schedule.
func (e *Engine) Initialize() error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.ctx.Load() != nil {
		return nil
	}

	c := graph.NewContext(e.rate)
	if e.muted.Load() {
		c.Bus().Gain.SetValueAtTime(0, 0)
	}

	if e.dev == nil {
		e.dev = &device.Null{}
	}
	if err := e.dev.Start(c, e.rate); err != nil {
		slog.Warn("audio device unavailable, rendering silently", "err", err)
		e.dev = &device.Null{}
		if err := e.dev.Start(c, e.rate); err != nil {
			return err
		}
	}
	e.ctx.Store(c)

	ambience(c, c.CurrentTime()).Start()
	slog.Info("audio engine initialised", "sample_rate", int(e.rate))
	return nil
}

// Initialized reports whether [Engine.Initialize] has completed.
func (e *Engine) Initialized() bool { return e.ctx.Load() != nil }

// Context returns the audio context, or nil before initialisation.
func (e *Engine) Context() *graph.Context { return e.ctx.Load() }

// Close stops speech and the output device.
func (e *Engine) Close() error {
	e.StopSpeech()
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.dev == nil {
		return nil
	}
	return e.dev.Close()
}

// Muted reports the current mute flag.
func (e *Engine) Muted() bool { return e.muted.Load() }

// SetMuted fades the master output towards silence or full level. Muting
// also cuts off any speech immediately. The flag is remembered before
// initialisation and applied when the context is created.
func (e *Engine) SetMuted(m bool) {
	e.muted.Store(m)
	if c := e.ctx.Load(); c != nil {
		target := 1.0
		if m {
			target = 0
		}
		now := c.CurrentTime()
		c.Do(func() {
			c.Bus().Gain.
				CancelAndHoldAtTime(now).
				SetTargetAtTime(target, now, MuteTimeConstant)
		})
	}
	if m {
		e.StopSpeech()
	}
	slog.Debug("mute changed", "muted", m)
}

// SampleRate returns the render sample rate. It is valid before
// initialisation.
func (e *Engine) SampleRate() beep.SampleRate { return e.rate }

// Attach adds s to the master bus. Before initialisation s is discarded.
func (e *Engine) Attach(s beep.Streamer) {
	if c := e.ctx.Load(); c != nil {
		c.Attach(s)
	}
}

// Do runs fn under the render lock, or directly before initialisation.
func (e *Engine) Do(fn func()) {
	if c := e.ctx.Load(); c != nil {
		c.Do(fn)
		return
	}
	fn()
}

// Play plays the one-shot effect kind. Growls requested this way last one
// second.
func (e *Engine) Play(kind Kind) *graph.Voice {
	switch kind {
	case KindWhisper:
		return e.PlayWhisper()
	case KindGlitch:
		return e.PlayGlitch()
	case KindTypingTick:
		return e.PlayTypingTick()
	case KindHeartbeat:
		return e.PlayHeartbeat()
	case KindScream:
		return e.PlayScream()
	case KindGrowl:
		return e.PlayGrowl(time.Second)
	}
	return nil
}

// PlayWhisper plays 1.5 s of breathy band-passed noise at a random position
// in the stereo field.
func (e *Engine) PlayWhisper() *graph.Voice {
	return e.play(KindWhisper, func(c *graph.Context, t float64) *graph.Voice {
		return whisper(c, e.rnd, t)
	})
}

// PlayGlitch plays a short decaying sawtooth burst at a random pitch.
func (e *Engine) PlayGlitch() *graph.Voice {
	return e.play(KindGlitch, func(c *graph.Context, t float64) *graph.Voice {
		return glitch(c, e.rnd, t)
	})
}

// PlayTypingTick plays a 50 ms click of filtered noise.
func (e *Engine) PlayTypingTick() *graph.Voice {
	return e.play(KindTypingTick, func(c *graph.Context, t float64) *graph.Voice {
		return typingTick(c, e.rnd, t)
	})
}

// PlayHeartbeat plays a falling sine thump. Heartbeats closer together than
// [HeartbeatInterval] are dropped.
func (e *Engine) PlayHeartbeat() *graph.Voice {
	return e.play(KindHeartbeat, heartbeat)
}

// PlayScream plays a one second rising sawtooth shriek.
func (e *Engine) PlayScream() *graph.Voice {
	return e.play(KindScream, scream)
}

// PlayGrowl plays a low rumbling growl lasting d. A non-positive d plays
// nothing.
func (e *Engine) PlayGrowl(d time.Duration) *graph.Voice {
	if d <= 0 {
		return nil
	}
	return e.play(KindGrowl, func(c *graph.Context, t float64) *graph.Voice {
		return growl(c, e.rnd, t, d)
	})
}

// PlayFeedMe speaks the hungry demon's line.
func (e *Engine) PlayFeedMe() {
	e.Speak("Feeeed me.")
}

func (e *Engine) play(kind Kind, build func(c *graph.Context, t float64) *graph.Voice) *graph.Voice {
	c := e.ctx.Load()
	if c == nil {
		e.dropped(kind, reasonUninitialized)
		return nil
	}
	if e.muted.Load() {
		e.dropped(kind, reasonMuted)
		return nil
	}
	if !e.guard.TryTrigger(kind, c.Now()) {
		e.dropped(kind, reasonDebounced)
		return nil
	}

	v := build(c, c.CurrentTime())
	v.Start()
	e.metrics.RecordEffect(context.Background(), string(kind))
	return v
}

func (e *Engine) dropped(kind Kind, reason string) {
	slog.Debug("effect dropped", "kind", kind, "reason", reason)
	e.metrics.RecordDroppedEffect(context.Background(), string(kind), reason)
}

// lockedRand serialises access to a random source shared by concurrent
// play calls.
type lockedRand struct {
	mu sync.Mutex
	r  graph.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
