package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":    {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":    {"elevenlabs", "coqui"},
	"speech": {"voiced", "espeak"},
}

var (
	audioBackends     = []string{"", "auto", "speaker", "pipe", "none"}
	graveyardBackends = []string{"", "file", "sqlite", "postgres"}
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// An empty document yields the zero [Config], which is valid.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadBytes(data []byte) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Audio
	if !slices.Contains(audioBackends, cfg.Audio.Backend) {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: auto, speaker, pipe, none", cfg.Audio.Backend))
	}
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BufferMS < 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_ms %d must not be negative", cfg.Audio.BufferMS))
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("speech", cfg.Providers.Speech.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	for i, fb := range cfg.Providers.TTSFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("tts", fb.Name)
	}
	if len(cfg.Providers.TTSFallbacks) > 0 && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts_fallbacks requires providers.tts"))
	}
	if cfg.Providers.Speech.Name == "voiced" && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New(`providers.speech "voiced" requires a TTS provider but providers.tts is not configured`))
	}

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; rituals and the séance will fail")
	}

	// Ritual
	if t := cfg.Ritual.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("ritual.temperature %.2f is out of range [0, 2]", t))
	}
	if p := cfg.Ritual.TopP; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("ritual.top_p %.2f is out of range [0, 1]", p))
	}
	if cfg.Ritual.TopK < 0 {
		errs = append(errs, fmt.Errorf("ritual.top_k %d must not be negative", cfg.Ritual.TopK))
	}

	// Graveyard
	if !slices.Contains(graveyardBackends, cfg.Graveyard.Backend) {
		errs = append(errs, fmt.Errorf("graveyard.backend %q is invalid; valid values: file, sqlite, postgres", cfg.Graveyard.Backend))
	}
	if cfg.Graveyard.Backend == "postgres" && cfg.Graveyard.DSN == "" {
		errs = append(errs, errors.New("graveyard.dsn is required when backend is postgres"))
	}

	// Sanity
	if f := cfg.Sanity.Floor; f < 0 || f > 100 {
		errs = append(errs, fmt.Errorf("sanity.floor %d is out of range [0, 100]", f))
	}
	if cfg.Sanity.DecayInterval < 0 {
		errs = append(errs, fmt.Errorf("sanity.decay_interval %v must not be negative", cfg.Sanity.DecayInterval))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
