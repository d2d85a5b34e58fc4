// Package coqui provides a tts.Provider for a locally running Coqui TTS
// server, so the necromancer can speak without a cloud account.
//
// Two server flavours are supported:
//
//   - APIModeStandard (default): the stock Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is GET /api/tts, voices come
//     from GET /details.
//
//   - APIModeXTTS: the XTTS v2 API server. Synthesis is POST /tts_to_audio/,
//     voices come from GET /studio_speakers.
//
// Both servers answer one WAV per request. SynthesizeStream therefore splits
// incoming text into sentences and keeps a few requests in flight while
// emitting the audio in sentence order. All output is resampled to the
// configured rate so Format is known before the first byte arrives.
//
//	p, _ := coqui.New("http://localhost:5002", coqui.WithLanguage("en"))
//	pcm, err := p.SynthesizeStream(ctx, textCh, voice)
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/necromancer/pkg/audio"
	"github.com/MrWong99/necromancer/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage   = "en"
	defaultTimeout    = 30 * time.Second
	defaultSampleRate = 22050

	xttsSynthPath      = "/tts_to_audio/"
	xttsVoicesPath     = "/studio_speakers"
	standardSynthPath  = "/api/tts"
	standardVoicesPath = "/details"

	// inFlight bounds the number of concurrent synthesis requests.
	inFlight = 4

	chunkBytes = 4096
)

// APIMode selects which Coqui server API the provider talks to.
type APIMode string

const (
	APIModeXTTS     APIMode = "xtts"
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the server. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode selects the server flavour. Defaults to APIModeStandard.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithOutputSampleRate sets the rate all synthesised PCM is resampled to.
// Defaults to 22050 Hz, the native rate of most Coqui models.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) {
		p.outputRate = rate
	}
}

// Provider implements tts.Provider backed by a Coqui TTS server.
// It is safe for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
	apiMode    APIMode
	outputRate int
}

// New creates a Provider for the server at serverURL
// (e.g. "http://localhost:5002").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		outputRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if p.apiMode != APIModeStandard && p.apiMode != APIModeXTTS {
		return nil, fmt.Errorf("coqui: unknown API mode %q", p.apiMode)
	}
	if p.outputRate <= 0 {
		return nil, fmt.Errorf("coqui: output sample rate must be positive, got %d", p.outputRate)
	}
	return p, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() audio.Format {
	return audio.Format{SampleRate: p.outputRate, Channels: 1}
}

type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// pending is the eventual result of one sentence request.
type pending chan result

type result struct {
	pcm []byte
	err error
}

// SynthesizeStream implements tts.Provider. Text fragments are accumulated
// into sentences (split on '.', '!' or '?' followed by whitespace or the end
// of input). A failed request ends the stream early.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" && p.apiMode == APIModeXTTS {
		return nil, errors.New("coqui: voice.ID must not be empty in XTTS mode")
	}

	out := make(chan []byte, 256)
	queue := make(chan pending, inFlight)

	// Producer: split text into sentences and start a request for each.
	go func() {
		defer close(queue)
		for sentence := range sentences(ctx, text) {
			res := make(pending, 1)
			select {
			case queue <- res:
			case <-ctx.Done():
				return
			}
			go func() {
				pcm, err := p.synthesize(ctx, sentence, voice)
				res <- result{pcm: pcm, err: err}
			}()
		}
	}()

	// Consumer: emit results in order.
	go func() {
		defer close(out)
		for res := range queue {
			var r result
			select {
			case r = <-res:
			case <-ctx.Done():
				audio.Drain[pending](queue)
				return
			}
			if r.err != nil {
				audio.Drain[pending](queue)
				return
			}
			for pcm := r.pcm; len(pcm) > 0; {
				n := min(chunkBytes, len(pcm))
				select {
				case out <- pcm[:n]:
				case <-ctx.Done():
					audio.Drain[pending](queue)
					return
				}
				pcm = pcm[n:]
			}
		}
	}()

	return out, nil
}

// sentences reads fragments from text and yields trimmed, non-empty
// sentences. The trailing partial sentence is yielded when text closes.
func sentences(ctx context.Context, text <-chan string) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		emit := func(s string) bool {
			if s = strings.TrimSpace(s); s == "" {
				return true
			}
			select {
			case ch <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}
		var buf string
		for {
			select {
			case frag, ok := <-text:
				if !ok {
					emit(buf)
					return
				}
				buf += frag
				for {
					i := findSentenceBoundary(buf)
					if i < 0 {
						break
					}
					s := buf[:i+1]
					buf = buf[i+1:]
					if !emit(s) {
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (p *Provider) synthesize(ctx context.Context, sentence string, voice tts.VoiceProfile) ([]byte, error) {
	var (
		req *http.Request
		err error
	)
	if p.apiMode == APIModeXTTS {
		body, _ := json.Marshal(xttsRequest{Text: sentence, SpeakerWav: voice.ID, Language: p.language})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+xttsSynthPath, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		q := url.Values{}
		q.Set("text", sentence)
		if voice.ID != "" {
			q.Set("speaker_id", voice.ID)
		}
		if p.language != "" {
			q.Set("language_id", p.language)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+standardSynthPath+"?"+q.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	wav, err := p.do(req)
	if err != nil {
		return nil, err
	}
	pcm, f, err := audio.StripWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}
	if f.Channels != 1 {
		return nil, fmt.Errorf("coqui: unsupported %s output", f)
	}
	return audio.ResampleMono16(pcm, f.SampleRate, p.outputRate), nil
}

// do performs req and returns the body of a 200 response.
func (p *Provider) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read %s response: %w", req.URL.Path, err)
	}
	return body, nil
}

// ListVoices implements tts.Provider. Results are sorted by ID.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	path := standardVoicesPath
	if p.apiMode == APIModeXTTS {
		path = xttsVoicesPath
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := p.do(req)
	if err != nil {
		return nil, err
	}
	if p.apiMode == APIModeXTTS {
		return p.studioVoices(body)
	}
	return p.modelVoices(body)
}

// studioVoices maps the /studio_speakers object (keyed by speaker name).
func (p *Provider) studioVoices(body []byte) ([]tts.VoiceProfile, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("coqui: decode studio speakers: %w", err)
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	slices.Sort(names)

	profiles := make([]tts.VoiceProfile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, p.profile(name, map[string]string{"type": "studio"}))
	}
	return profiles, nil
}

// modelVoices maps /details. Multi-speaker models give one profile per
// speaker; single-speaker models give one profile named after the model.
func (p *Provider) modelVoices(body []byte) ([]tts.VoiceProfile, error) {
	var d detailsResponse
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("coqui: decode details response: %w", err)
	}
	if len(d.Speakers) == 0 {
		name := d.ModelName
		if name == "" {
			name = "default"
		}
		v := p.profile(name, map[string]string{"type": "single-speaker", "model_name": name})
		v.Language = d.Language
		return []tts.VoiceProfile{v}, nil
	}

	speakers := slices.Clone(d.Speakers)
	slices.Sort(speakers)
	profiles := make([]tts.VoiceProfile, 0, len(speakers))
	for _, spk := range speakers {
		v := p.profile(spk, map[string]string{"type": "speaker", "model_name": d.ModelName})
		v.Language = d.Language
		profiles = append(profiles, v)
	}
	return profiles, nil
}

func (p *Provider) profile(name string, meta map[string]string) tts.VoiceProfile {
	return tts.VoiceProfile{ID: name, Name: name, Provider: "coqui", Metadata: meta}
}

// findSentenceBoundary returns the index of the first '.', '!' or '?' that
// ends s or is followed by whitespace, or -1. "3.14" and "Dr.X" do not split.
func findSentenceBoundary(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 >= len(s) || unicode.IsSpace(rune(s[i+1])) {
				return i
			}
		}
	}
	return -1
}
