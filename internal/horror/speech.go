package horror

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/necromancer/pkg/provider/speech"
)

// Demonic voice settings.
const (
	speechPitch  = 0.01
	speechRate   = 0.4
	speechVolume = 1.0

	// growlPerRune is the growl length per character of the text as given,
	// markdown included.
	growlPerRune = 100 * time.Millisecond
)

// SetSynthesizer replaces the speech synthesizer. Any current utterance of
// the old synthesizer is cancelled.
func (e *Engine) SetSynthesizer(s speech.Synthesizer) {
	e.speechMu.Lock()
	defer e.speechMu.Unlock()
	if e.synth != nil {
		e.synth.Cancel()
	}
	e.synth = s
}

// Speak says text in the demon's voice with a growl underneath. Any current
// utterance is cut off first. Nothing happens while muted or without a
// synthesizer.
func (e *Engine) Speak(text string) {
	if e.muted.Load() {
		slog.Debug("speech dropped", "reason", reasonMuted)
		return
	}

	e.speechMu.Lock()
	defer e.speechMu.Unlock()
	s := e.synth
	if s == nil {
		slog.Debug("speech dropped", "reason", "no synthesizer")
		return
	}
	s.Cancel()

	clean := Sanitize(text)
	u := speech.Utterance{
		Text:   clean,
		Pitch:  speechPitch,
		Rate:   speechRate,
		Volume: speechVolume,
		Voice:  pickVoice(s.Voices(), e.preferredVoice),
	}

	e.PlayGrowl(time.Duration(utf8.RuneCountInString(text)) * growlPerRune)
	if err := s.Speak(u); err != nil {
		slog.Debug("speech failed", "err", err)
		return
	}
	e.metrics.SpeechUtterances.Add(context.Background(), 1)
}

// PauseSpeech pauses the current utterance if one is playing.
func (e *Engine) PauseSpeech() {
	e.withSynth(func(s speech.Synthesizer) {
		if !s.Speaking() || s.Paused() {
			return
		}
		if err := s.Pause(); err != nil {
			slog.Debug("speech pause failed", "err", err)
		}
	})
}

// ResumeSpeech resumes a paused utterance.
func (e *Engine) ResumeSpeech() {
	e.withSynth(func(s speech.Synthesizer) {
		if !s.Paused() {
			return
		}
		if err := s.Resume(); err != nil {
			slog.Debug("speech resume failed", "err", err)
		}
	})
}

// StopSpeech cancels the current utterance.
func (e *Engine) StopSpeech() {
	e.withSynth(func(s speech.Synthesizer) { s.Cancel() })
}

func (e *Engine) withSynth(fn func(speech.Synthesizer)) {
	e.speechMu.Lock()
	defer e.speechMu.Unlock()
	if e.synth != nil {
		fn(e.synth)
	}
}

// pickVoice returns the first voice whose name contains preferred, else the
// first voice, else nil.
func pickVoice(voices []speech.Voice, preferred string) *speech.Voice {
	if len(voices) == 0 {
		return nil
	}
	for i := range voices {
		if preferred != "" && strings.Contains(voices[i].Name, preferred) {
			v := voices[i]
			return &v
		}
	}
	v := voices[0]
	return &v
}
