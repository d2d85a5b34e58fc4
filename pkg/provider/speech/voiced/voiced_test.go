package voiced

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/necromancer/pkg/audio/graph"
	"github.com/MrWong99/necromancer/pkg/provider/speech"
	"github.com/MrWong99/necromancer/pkg/provider/tts"
	ttsmock "github.com/MrWong99/necromancer/pkg/provider/tts/mock"
)

// tone returns n mono frames at half scale.
func tone(n int) []byte {
	b := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		b[2*i], b[2*i+1] = 0x00, 0x40
	}
	return b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func peak(buf [][2]float64) float64 {
	var p float64
	for _, f := range buf {
		p = max(p, f[0], -f[0])
	}
	return p
}

func newTestSynth(t *testing.T, frames int) (*Synthesizer, *graph.Context, *ttsmock.Provider) {
	t.Helper()
	p := &ttsmock.Provider{
		SynthesizeChunks: [][]byte{tone(frames)},
		ListVoicesResult: []tts.VoiceProfile{{ID: "lich", Name: "Lich King", Language: "en"}},
	}
	out := graph.NewContext(22050)
	s, err := New(context.Background(), p, out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, out, p
}

func TestNew_Voices(t *testing.T) {
	s, _, _ := newTestSynth(t, 10)
	v := s.Voices()
	if len(v) != 1 || v[0] != (speech.Voice{ID: "lich", Name: "Lich King", Lang: "en"}) {
		t.Errorf("Voices() = %+v, want the lich voice", v)
	}

	failing := &ttsmock.Provider{ListVoicesErr: errors.New("offline")}
	if _, err := New(context.Background(), failing, graph.NewContext(22050)); err == nil {
		t.Error("expected error when voices cannot be listed")
	}
}

func TestSpeak_PlaysOnBus(t *testing.T) {
	s, out, p := newTestSynth(t, 22050)

	if err := s.Speak(speech.Utterance{Text: "Your code is cursed.", Rate: 1, Volume: 1}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !s.Speaking() {
		t.Error("Speaking() = false right after Speak")
	}
	waitFor(t, "voice on bus", func() bool {
		var n int
		out.Do(func() { n = out.Bus().Len() })
		return n == 1
	})

	calls := p.Calls()
	if len(calls) != 1 || calls[0].Text != "Your code is cursed." || calls[0].Voice.ID != "lich" {
		t.Errorf("calls = %+v, want one call with the text and default voice", calls)
	}

	buf := make([][2]float64, 512)
	out.Stream(buf)
	if peak(buf) == 0 {
		t.Error("bus output is silent while speaking")
	}

	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !s.Paused() {
		t.Error("Paused() = false after Pause")
	}
	out.Stream(buf)
	if peak(buf) != 0 {
		t.Errorf("peak = %v while paused, want 0", peak(buf))
	}

	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	out.Stream(buf)
	if peak(buf) == 0 {
		t.Error("bus output is silent after Resume")
	}

	s.Cancel()
	if s.Speaking() {
		t.Error("Speaking() = true after Cancel")
	}
	out.Stream(buf)
	if n := out.Bus().Len(); n != 0 {
		t.Errorf("bus Len = %d after Cancel, want 0", n)
	}
}

func TestSpeak_EndsNaturally(t *testing.T) {
	s, out, _ := newTestSynth(t, 256)

	if err := s.Speak(speech.Utterance{Text: "Boo.", Rate: 1, Volume: 1}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitFor(t, "voice on bus", func() bool {
		var n int
		out.Do(func() { n = out.Bus().Len() })
		return n == 1
	})
	out.Advance(100 * time.Millisecond)
	if s.Speaking() {
		t.Error("Speaking() = true after the clip played out")
	}
}

func TestSpeak_PauseBeforeAudio(t *testing.T) {
	s, out, _ := newTestSynth(t, 22050)

	if err := s.Speak(speech.Utterance{Text: "Wait.", Rate: 1, Volume: 1}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	_ = s.Pause()
	waitFor(t, "voice on bus", func() bool {
		var n int
		out.Do(func() { n = out.Bus().Len() })
		return n == 1 || !s.Speaking()
	})
	buf := make([][2]float64, 256)
	out.Stream(buf)
	if s.Speaking() && peak(buf) != 0 {
		t.Errorf("peak = %v, want a paused utterance to stay silent", peak(buf))
	}
	s.Cancel()
}

func TestSpeak_EmptyTextIsNoop(t *testing.T) {
	s, _, p := newTestSynth(t, 10)
	if err := s.Speak(speech.Utterance{}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(p.Calls()) != 0 || s.Speaking() {
		t.Error("empty text should not reach the provider")
	}
}

func TestSpeak_ProviderError(t *testing.T) {
	s, out, p := newTestSynth(t, 10)
	p.SynthesizeErr = errors.New("quota exhausted")
	if err := s.Speak(speech.Utterance{Text: "hi"}); err != nil {
		t.Fatalf("Speak = %v, want nil with the failure handled in the background", err)
	}
	waitFor(t, "failed utterance to end", func() bool { return !s.Speaking() })
	var n int
	out.Do(func() { n = out.Bus().Len() })
	if n != 0 {
		t.Errorf("bus Len = %d after a failed synthesis, want 0", n)
	}
}

// stalledProvider blocks in SynthesizeStream until its context ends, the way
// a provider does while its connection is still being dialled.
type stalledProvider struct {
	ttsmock.Provider
	entered   chan struct{}
	abandoned chan struct{}
}

func (p *stalledProvider) SynthesizeStream(ctx context.Context, _ <-chan string, _ tts.VoiceProfile) (<-chan []byte, error) {
	close(p.entered)
	<-ctx.Done()
	close(p.abandoned)
	return nil, ctx.Err()
}

func TestSpeak_DoesNotWaitForProvider(t *testing.T) {
	p := &stalledProvider{entered: make(chan struct{}), abandoned: make(chan struct{})}
	s, err := New(context.Background(), p, graph.NewContext(22050))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	if err := s.Speak(speech.Utterance{Text: "I am still dialling."}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Speak took %v, want it to return before synthesis", elapsed)
	}
	if !s.Speaking() {
		t.Error("Speaking() = false while synthesis is pending")
	}

	select {
	case <-p.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("provider was never called")
	}
	s.Cancel()
	select {
	case <-p.abandoned:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel did not abort the pending synthesis")
	}
	if s.Speaking() {
		t.Error("Speaking() = true after Cancel")
	}
}

func TestSpeak_RecordsTimeToAudio(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	hist, err := mp.Meter("test").Float64Histogram("tts.ready")
	if err != nil {
		t.Fatalf("Float64Histogram: %v", err)
	}

	p := &ttsmock.Provider{SynthesizeChunks: [][]byte{tone(64)}}
	out := graph.NewContext(22050)
	s, err := New(context.Background(), p, out, WithReadyHistogram(hist))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Speak(speech.Utterance{Text: "Feed me.", Rate: 1, Volume: 1}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitFor(t, "voice on bus", func() bool {
		var n int
		out.Do(func() { n = out.Bus().Len() })
		return n == 1
	})

	var count uint64
	waitFor(t, "time-to-audio sample", func() bool {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			t.Fatalf("Collect: %v", err)
		}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if h, ok := m.Data.(metricdata.Histogram[float64]); ok && len(h.DataPoints) > 0 {
					count = h.DataPoints[0].Count
				}
			}
		}
		return count > 0
	})
	if count != 1 {
		t.Errorf("time-to-audio samples = %d, want 1", count)
	}
	s.Cancel()
}
