// Package graph is a small real-time signal graph built on gopxl/beep
// streamers.
//
// A [Context] owns the render clock and a master [Bus]. Sources, filters and
// gain stages are ordinary [beep.Streamer] values whose parameters are
// [Param] automation curves evaluated against the Context clock. A [Voice]
// wraps a chain of nodes with start and stop times; once its stop time is
// reached the voice reports itself drained and the bus mixer drops it, so
// one-shot sounds clean up after themselves.
//
// The Context is pulled by an output device on its own goroutine. Every
// mutation of state that is already being rendered goes through
// [Context.Do], which takes the same lock the renderer holds for each block.
package graph

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
)

// Quantum is the largest number of frames rendered in one locked step.
// Voices attached while the device is pulling begin on the next step.
const Quantum = 128

// Context is the process-wide audio clock and render root. It implements
// [beep.Streamer] and is handed to an output device which pulls it.
type Context struct {
	mu    sync.Mutex
	rate  beep.SampleRate
	frame int64
	bus   *Bus
}

// NewContext creates a Context rendering at rate with an empty master bus
// at unity gain.
func NewContext(rate beep.SampleRate) *Context {
	c := &Context{rate: rate}
	c.bus = newBus(c)
	return c
}

// SampleRate returns the render sample rate.
func (c *Context) SampleRate() beep.SampleRate { return c.rate }

// Bus returns the master bus.
func (c *Context) Bus() *Bus { return c.bus }

// CurrentTime returns the clock position in seconds.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seconds(c.frame)
}

// Now returns the clock position as a duration.
func (c *Context) Now() time.Duration {
	return time.Duration(c.CurrentTime() * float64(time.Second))
}

// Do runs fn while holding the render lock.
func (c *Context) Do(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Attach adds s to the master bus. It starts playing on the next quantum.
func (c *Context) Attach(s beep.Streamer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bus.mixer.Add(s)
}

// Stream renders the next len(samples) frames and advances the clock.
// It always fills samples completely and never drains.
func (c *Context) Stream(samples [][2]float64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for done := 0; done < len(samples); {
		n := min(Quantum, len(samples)-done)
		c.bus.stream(samples[done : done+n])
		c.frame += int64(n)
		done += n
	}
	return len(samples), true
}

// Err implements [beep.Streamer].
func (c *Context) Err() error { return nil }

// Advance renders and discards d worth of audio.
func (c *Context) Advance(d time.Duration) {
	buf := make([][2]float64, 512)
	for n := c.rate.N(d); n > 0; {
		k := min(n, len(buf))
		c.Stream(buf[:k])
		n -= k
	}
}

func (c *Context) seconds(frame int64) float64 {
	return float64(frame) / float64(c.rate)
}

// frameAt converts a clock time in seconds to a frame index, rounding up.
func (c *Context) frameAt(t float64) int64 {
	f := t * float64(c.rate)
	i := int64(f)
	if float64(i) < f {
		i++
	}
	return i
}

// cursor tracks the absolute frame position of a node. Nodes inside one
// voice are pulled in lockstep, so each keeps its own cursor and they agree.
// The first pull always happens on a quantum boundary while the render lock
// is held, which is where the cursor is anchored.
type cursor struct {
	ctx     *Context
	pos     int64
	started bool
}

func (c *cursor) begin() {
	if !c.started {
		c.pos = c.ctx.frame
		c.started = true
	}
}

func (c *cursor) at(i int) float64 {
	return float64(c.pos+int64(i)) / float64(c.ctx.rate)
}

func (c *cursor) advance(n int) { c.pos += int64(n) }

// Bus is the master output stage. All voices are mixed, scaled by Gain and
// passed through a [Compressor] before reaching the device.
type Bus struct {
	// Gain is the master gain. It is owned by whoever controls muting and
	// must only be changed inside [Context.Do] once rendering has begun.
	Gain *Param

	mixer beep.Mixer
	out   beep.Streamer
}

func newBus(c *Context) *Bus {
	b := &Bus{Gain: NewParam(1)}
	gain := NewGain(c, &b.mixer, b.Gain)
	b.out = NewCompressor(c.rate, gain)
	return b
}

// Len returns the number of voices currently attached.
func (b *Bus) Len() int { return b.mixer.Len() }

func (b *Bus) stream(samples [][2]float64) {
	n, _ := b.out.Stream(samples)
	clear(samples[n:])
}
