package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/necromancer/pkg/audio"
	"github.com/MrWong99/necromancer/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker. Every backend must
// emit the same PCM format, since playback is set up from [TTSFallback.Format]
// before synthesis starts.
type TTSFallback struct {
	group  *FallbackGroup[tts.Provider]
	format audio.Format
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	if cfg.Kind == "" {
		cfg.Kind = "tts"
	}
	return &TTSFallback{
		group:  NewFallbackGroup(primary, primaryName, cfg),
		format: primary.Format(),
	}
}

// AddFallback registers an additional TTS provider as a fallback. It fails if
// the provider's PCM format differs from the primary's.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) error {
	if got := provider.Format(); got != f.format {
		return fmt.Errorf("resilience: tts fallback %q emits %v, primary emits %v", name, got, f.format)
	}
	f.group.AddFallback(name, provider)
	return nil
}

// SynthesizeStream consumes text fragments and returns a channel of audio bytes,
// trying the first healthy provider. Only the initial stream setup is covered by
// failover; mid-stream errors close the audio channel early.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) (<-chan []byte, error) {
		return p.SynthesizeStream(ctx, text, voice)
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// Format implements [tts.Provider].
func (f *TTSFallback) Format() audio.Format { return f.format }
