// Package voiced implements speech.Synthesizer by rendering text through a
// tts.Provider and playing the PCM on the signal graph. Voiced speech passes
// through the master bus, so muting the engine also fades the voice.
package voiced

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/necromancer/pkg/audio"
	"github.com/MrWong99/necromancer/pkg/audio/graph"
	"github.com/MrWong99/necromancer/pkg/provider/speech"
	"github.com/MrWong99/necromancer/pkg/provider/tts"
)

// Output is where voiced speech is played. *graph.Context satisfies it.
type Output interface {
	SampleRate() beep.SampleRate
	Attach(s beep.Streamer)
	Do(fn func())
}

// Quality is the resampling quality passed to beep.
const Quality = 4

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTimeout bounds how long synthesis of one utterance may take.
// Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.timeout = d
	}
}

// WithReadyHistogram records, in seconds, how long each utterance took from
// Speak until its audio was on the bus.
func WithReadyHistogram(h metric.Float64Histogram) Option {
	return func(s *Synthesizer) {
		s.ready = h
	}
}

// Synthesizer plays tts.Provider output on an Output.
type Synthesizer struct {
	provider tts.Provider
	out      Output
	timeout  time.Duration
	voices   []speech.Voice
	ready    metric.Float64Histogram

	mu  sync.Mutex
	cur *playback
}

var _ speech.Synthesizer = (*Synthesizer)(nil)

// playback is one utterance. ctrl is nil until its audio has arrived.
type playback struct {
	cancel context.CancelFunc
	ctrl   *beep.Ctrl
	paused bool
	done   atomic.Bool
}

// New creates a Synthesizer and loads the provider's voice list.
func New(ctx context.Context, p tts.Provider, out Output, opts ...Option) (*Synthesizer, error) {
	profiles, err := p.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("voiced: list voices: %w", err)
	}
	s := &Synthesizer{provider: p, out: out, timeout: 30 * time.Second}
	for _, o := range opts {
		o(s)
	}
	for _, v := range profiles {
		s.voices = append(s.voices, speech.Voice{ID: v.ID, Name: v.Name, Lang: v.Language})
	}
	return s, nil
}

// Voices implements speech.Synthesizer.
func (s *Synthesizer) Voices() []speech.Voice {
	return append([]speech.Voice(nil), s.voices...)
}

// Speak implements speech.Synthesizer. It returns at once: the provider is
// called on a background goroutine and the audio starts as soon as it has
// finished. Synthesis failures are logged, not returned.
func (s *Synthesizer) Speak(u speech.Utterance) error {
	if u.Text == "" {
		return nil
	}
	voice := tts.VoiceProfile{}
	switch {
	case u.Voice != nil:
		voice.ID, voice.Name = u.Voice.ID, u.Voice.Name
	case len(s.voices) > 0:
		voice.ID, voice.Name = s.voices[0].ID, s.voices[0].Name
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	p := &playback{cancel: cancel}

	s.mu.Lock()
	prev := s.cur
	s.cur = p
	s.mu.Unlock()
	if prev != nil {
		s.stop(prev)
	}

	go s.play(ctx, p, voice, u, time.Now())
	return nil
}

// play synthesises u and attaches the clip to the output unless p was
// cancelled in the meantime.
func (s *Synthesizer) play(ctx context.Context, p *playback, voice tts.VoiceProfile, u speech.Utterance, start time.Time) {
	text := make(chan string, 1)
	text <- u.Text
	close(text)
	pcm, err := s.provider.SynthesizeStream(ctx, text, voice)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("voiced: synthesis failed", "err", err)
		}
		s.finish(p)
		return
	}

	var buf []byte
	for chunk := range pcm {
		buf = append(buf, chunk...)
	}
	if ctx.Err() != nil || len(buf) == 0 {
		if ctx.Err() == context.DeadlineExceeded {
			slog.Debug("voiced: synthesis timed out", "timeout", s.timeout)
		}
		s.finish(p)
		return
	}

	ctrl := &beep.Ctrl{Streamer: s.streamer(buf, u, p)}

	s.mu.Lock()
	if s.cur != p {
		s.mu.Unlock()
		return
	}
	p.ctrl = ctrl
	ctrl.Paused = p.paused
	s.mu.Unlock()

	s.out.Attach(ctrl)
	if s.ready != nil {
		s.ready.Record(context.Background(), time.Since(start).Seconds())
	}
}

// streamer builds clip → resample → volume → end callback. Rate scales the
// resampling ratio, so a slow utterance is also lower in pitch.
func (s *Synthesizer) streamer(pcm []byte, u speech.Utterance, p *playback) beep.Streamer {
	f := s.provider.Format()
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	ratio := float64(f.SampleRate) / float64(s.out.SampleRate()) * rate

	var src beep.Streamer = beep.ResampleRatio(Quality, ratio, audio.NewClip(pcm, f))
	src = graph.Scale(src, speech.Clamp(u.Volume, 0, 1))
	return beep.Seq(src, beep.Callback(func() {
		p.done.Store(true)
		s.finish(p)
	}))
}

// finish clears p if it is still the current utterance. The callback runs on
// the render goroutine, so it must not call back into the Output.
func (s *Synthesizer) finish(p *playback) {
	p.done.Store(true)
	p.cancel()
	s.mu.Lock()
	if s.cur == p {
		s.cur = nil
	}
	s.mu.Unlock()
}

// stop silences p and releases it from the bus.
func (s *Synthesizer) stop(p *playback) {
	p.done.Store(true)
	p.cancel()
	s.mu.Lock()
	ctrl := p.ctrl
	s.mu.Unlock()
	if ctrl != nil {
		s.out.Do(func() { ctrl.Streamer = nil })
	}
}

// Pause implements speech.Synthesizer.
func (s *Synthesizer) Pause() error {
	return s.setPaused(true)
}

// Resume implements speech.Synthesizer.
func (s *Synthesizer) Resume() error {
	return s.setPaused(false)
}

func (s *Synthesizer) setPaused(paused bool) error {
	s.mu.Lock()
	p := s.cur
	if p == nil || p.paused == paused {
		s.mu.Unlock()
		return nil
	}
	p.paused = paused
	ctrl := p.ctrl
	s.mu.Unlock()

	if ctrl != nil {
		s.out.Do(func() { ctrl.Paused = paused })
	}
	return nil
}

// Cancel implements speech.Synthesizer.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	p := s.cur
	s.cur = nil
	s.mu.Unlock()
	if p != nil {
		s.stop(p)
	}
}

// Speaking implements speech.Synthesizer.
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil && !s.cur.done.Load()
}

// Paused implements speech.Synthesizer.
func (s *Synthesizer) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil && s.cur.paused
}
