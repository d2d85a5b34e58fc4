// Package speech defines the Synthesizer interface used to voice the
// necromancer.
//
// A Synthesizer speaks one utterance at a time and exposes the lifecycle of
// that utterance: it can be paused, resumed and cancelled, and callers can
// ask whether it is currently speaking or paused. Speak returns as soon as
// playback has been scheduled; it never waits for the utterance to finish.
//
// Implementations must be safe for concurrent use.
package speech

import "errors"

// ErrUnsupported is returned when a platform cannot perform an operation,
// for example pausing a speech process on a system without job control.
var ErrUnsupported = errors.New("speech: unsupported on this platform")

// Voice is one voice offered by a Synthesizer.
type Voice struct {
	// ID is the synthesizer-specific identifier.
	ID string

	// Name is the display name. The engine matches its preferred voice
	// pattern against it.
	Name string

	// Lang is a language tag such as "en-US", when known.
	Lang string
}

// Utterance is a single piece of text to speak with its prosody.
type Utterance struct {
	Text string

	// Pitch ranges over [0, 2] with 1 as the voice's natural pitch.
	Pitch float64

	// Rate ranges over [0.1, 10] with 1 as normal speed.
	Rate float64

	// Volume ranges over [0, 1].
	Volume float64

	// Voice selects the voice. Nil uses the synthesizer's default.
	Voice *Voice
}

// Synthesizer speaks utterances. Starting a new utterance while another is
// active is allowed; callers that want last-call-wins semantics cancel first.
type Synthesizer interface {
	// Voices lists the available voices in the synthesizer's order.
	Voices() []Voice

	// Speak schedules u and returns without waiting for it to finish.
	Speak(u Utterance) error

	// Pause suspends the active utterance.
	Pause() error

	// Resume continues a paused utterance.
	Resume() error

	// Cancel stops and discards the active utterance. It is a no-op when
	// nothing is speaking.
	Cancel()

	// Speaking reports whether an utterance is active, including a paused one.
	Speaking() bool

	// Paused reports whether the active utterance is paused.
	Paused() bool
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
