package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/necromancer/pkg/audio"
	"github.com/MrWong99/necromancer/pkg/provider/tts"
)

// ---- WebSocket message construction ----

func TestBuildWSMessage_WithVoiceSettings(t *testing.T) {
	vs := &voiceSettings{Stability: 0.3, SimilarityBoost: 0.75}
	data, err := buildWSMessage("Who disturbs my rest", vs)
	if err != nil {
		t.Fatalf("buildWSMessage: %v", err)
	}

	var msg textMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Text != "Who disturbs my rest" {
		t.Errorf("Text = %q, want %q", msg.Text, "Who disturbs my rest")
	}
	if msg.VoiceSettings == nil {
		t.Fatal("expected non-nil voice settings")
	}
	if msg.VoiceSettings.Stability != 0.3 {
		t.Errorf("Stability = %v, want 0.3", msg.VoiceSettings.Stability)
	}
}

func TestBuildWSMessage_FlushCommand(t *testing.T) {
	// ElevenLabs flush = {"text":""} with no other fields.
	data, err := buildWSMessage("", nil)
	if err != nil {
		t.Fatalf("buildWSMessage: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal flush: %v", err)
	}
	if string(raw["text"]) != `""` {
		t.Errorf("text = %s, want empty string", raw["text"])
	}
	if _, exists := raw["voice_settings"]; exists {
		t.Error("flush message should not contain voice_settings")
	}
}

func TestStreamURL(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	u := p.streamURL("voice-abc123")
	if !strings.HasPrefix(u, "wss://api.elevenlabs.io/v1/text-to-speech/voice-abc123/stream-input?") {
		t.Errorf("streamURL = %q, want the wss stream-input endpoint", u)
	}
	if !strings.Contains(u, "model_id=eleven_flash_v2_5") || !strings.Contains(u, "output_format=pcm_22050") {
		t.Errorf("streamURL = %q, want model_id and output_format query parameters", u)
	}

	local, _ := New("key", WithBaseURL("http://127.0.0.1:9999/"))
	if u := local.streamURL("v"); !strings.HasPrefix(u, "ws://127.0.0.1:9999/v1/") {
		t.Errorf("streamURL = %q, want ws:// for an http base", u)
	}
}

// ---- Voice list response parsing ----

func TestParseVoicesResponse(t *testing.T) {
	raw := []byte(`{
		"voices": [
			{"voice_id": "abc123", "name": "Crypt Keeper", "category": "premade", "labels": {"gender": "male", "language": "en"}},
			{"voice_id": "x1", "name": "Ghost", "category": "", "labels": null}
		]
	}`)

	profiles, err := parseVoicesResponse(raw)
	if err != nil {
		t.Fatalf("parseVoicesResponse: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("len(profiles) = %d, want 2", len(profiles))
	}
	keeper := profiles[0]
	if keeper.ID != "abc123" || keeper.Name != "Crypt Keeper" || keeper.Provider != "elevenlabs" {
		t.Errorf("profile = %+v, want abc123/Crypt Keeper/elevenlabs", keeper)
	}
	if keeper.Language != "en" {
		t.Errorf("Language = %q, want en", keeper.Language)
	}
	if keeper.Metadata["category"] != "premade" {
		t.Errorf("category = %q, want premade", keeper.Metadata["category"])
	}
	if _, ok := profiles[1].Metadata["category"]; ok {
		t.Error("expected no 'category' key in metadata when category is empty")
	}

	if _, err := parseVoicesResponse([]byte(`{invalid`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestListVoices_MockServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			t.Errorf("path = %q, want /v1/voices", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "key" {
			t.Errorf("xi-api-key = %q, want key", got)
		}
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Banshee"}]}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "Banshee" {
		t.Errorf("voices = %+v, want one Banshee", voices)
	}
}

func TestSynthesizeStream_MockServer(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	received := make(chan string, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var in textMessage
			_ = json.Unmarshal(msg, &in)
			received <- in.Text
			switch in.Text {
			case " ":
			case "":
				final, _ := json.Marshal(audioResponse{IsFinal: true})
				_ = conn.Write(ctx, websocket.MessageText, final)
				return
			default:
				out, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(pcm)})
				_ = conn.Write(ctx, websocket.MessageText, out)
			}
		}
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text := make(chan string, 1)
	text <- "Rise."
	close(text)

	ch, err := p.SynthesizeStream(ctx, text, tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var got []byte
	for chunk := range ch {
		got = append(got, chunk...)
	}
	if string(got) != string(pcm) {
		t.Errorf("audio = %v, want %v", got, pcm)
	}

	close(received)
	var texts []string
	for s := range received {
		texts = append(texts, s)
	}
	if want := []string{" ", "Rise.", ""}; strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Errorf("server received %q, want %q", texts, want)
	}
}

func TestSynthesizeStream_EmptyVoiceID(t *testing.T) {
	p, _ := New("key")
	if _, err := p.SynthesizeStream(context.Background(), make(chan string), tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice ID")
	}
}

// ---- Constructor tests ----

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("key", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for non-PCM output format")
	}

	p, err := New("key", WithModel("eleven_multilingual_v2"), WithOutputFormat("pcm_24000"), WithVoiceSettings(0.1, 0.9))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != "eleven_multilingual_v2" {
		t.Errorf("model = %q, want eleven_multilingual_v2", p.model)
	}
	if got, want := p.Format(), (audio.Format{SampleRate: 24000, Channels: 1}); got != want {
		t.Errorf("Format() = %v, want %v", got, want)
	}
	if p.settings.Stability != 0.1 {
		t.Errorf("Stability = %v, want 0.1", p.settings.Stability)
	}
}

func TestFormat_Default(t *testing.T) {
	p, _ := New("key")
	if got := p.Format().SampleRate; got != 22050 {
		t.Errorf("SampleRate = %d, want 22050", got)
	}
}
