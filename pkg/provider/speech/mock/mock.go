// Package mock provides a test double for speech.Synthesizer. It tracks
// the utterance lifecycle in memory: Speak marks it speaking, Cancel ends it.
// Call Finish to simulate an utterance running to completion.
package mock

import (
	"sync"

	"github.com/MrWong99/necromancer/pkg/provider/speech"
)

// Synthesizer is a mock implementation of speech.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// VoiceList is returned by Voices.
	VoiceList []speech.Voice

	// SpeakErr, if non-nil, is returned by Speak, which then does not
	// start speaking.
	SpeakErr error

	// Spoken records every utterance passed to Speak, in order.
	Spoken []speech.Utterance

	PauseCalls  int
	ResumeCalls int
	CancelCalls int

	speaking bool
	paused   bool
}

var _ speech.Synthesizer = (*Synthesizer)(nil)

// Voices implements speech.Synthesizer.
func (s *Synthesizer) Voices() []speech.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]speech.Voice(nil), s.VoiceList...)
}

// Speak implements speech.Synthesizer.
func (s *Synthesizer) Speak(u speech.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Spoken = append(s.Spoken, u)
	if s.SpeakErr != nil {
		return s.SpeakErr
	}
	s.speaking, s.paused = true, false
	return nil
}

// Pause implements speech.Synthesizer.
func (s *Synthesizer) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PauseCalls++
	if s.speaking {
		s.paused = true
	}
	return nil
}

// Resume implements speech.Synthesizer.
func (s *Synthesizer) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResumeCalls++
	s.paused = false
	return nil
}

// Cancel implements speech.Synthesizer.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CancelCalls++
	s.speaking, s.paused = false, false
}

// Speaking implements speech.Synthesizer.
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Paused implements speech.Synthesizer.
func (s *Synthesizer) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Finish ends the active utterance as if it had played out.
func (s *Synthesizer) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking, s.paused = false, false
}

// Utterances returns a copy of Spoken.
func (s *Synthesizer) Utterances() []speech.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]speech.Utterance(nil), s.Spoken...)
}

// Counts returns the number of Pause, Resume and Cancel calls.
func (s *Synthesizer) Counts() (pause, resume, cancel int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PauseCalls, s.ResumeCalls, s.CancelCalls
}
