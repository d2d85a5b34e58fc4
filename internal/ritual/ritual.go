// Package ritual turns source code into something new by sending it through
// one of four prompt templates on a text-generation provider.
//
// A single [Mode] runs one prompt. [ModeFullRitual] chains all four:
// autopsy and resurrection of the source, then curse removal of the
// resurrected code, then soul binding of the purified result. The four
// outputs can be packed into a zip with [Bundle].
package ritual

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/pkg/provider/llm"
)

// Mode selects what a ritual does to the code.
type Mode string

// Ritual modes.
const (
	ModeAutopsy      Mode = "AUTOPSY"
	ModeResurrect    Mode = "RESURRECT"
	ModeCurseRemoval Mode = "CURSE_REMOVAL"
	ModeSoulBinding  Mode = "SOUL_BINDING"
	ModeFullRitual   Mode = "FULL_RITUAL"
)

// Modes lists every mode in pipeline order.
var Modes = []Mode{ModeAutopsy, ModeResurrect, ModeCurseRemoval, ModeSoulBinding, ModeFullRitual}

// ParseMode returns the mode named s. An empty s means [ModeResurrect].
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeResurrect, nil
	}
	m := Mode(strings.ToUpper(s))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", &ModeError{Mode: Mode(s)}
}

// ModeError reports an unknown mode.
type ModeError struct {
	Mode Mode
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("ritual: unknown mode %q", e.Mode)
}

// ErrRitualFailed wraps every provider failure and empty answer.
var ErrRitualFailed = errors.New("the ritual failed, the spirits refused to answer")

// FailureText is the result shown to users when a ritual fails.
const FailureText = "// THE RITUAL FAILED. THE DEAD REFUSE TO SPEAK."

// Request is one ritual invocation.
type Request struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Code       string `json:"code"`
	Mode       Mode   `json:"mode"`
}

// Settings are the sampling parameters sent with every prompt.
type Settings struct {
	Temperature float64 `yaml:"temperature" json:"temperature"`
	TopP        float64 `yaml:"top_p" json:"top_p"`
	TopK        int     `yaml:"top_k" json:"top_k"`
}

// DefaultSettings returns the tuned ritual sampling parameters.
func DefaultSettings() Settings {
	return Settings{Temperature: 0.4, TopP: 0.95, TopK: 64}
}

// Performer runs rituals against an LLM provider.
// It is safe for concurrent use.
type Performer struct {
	provider llm.Provider
	metrics  *observe.Metrics
	name     string

	mu       sync.RWMutex
	settings Settings
}

// Option is a functional option for [New].
type Option func(*Performer)

// WithSettings overrides [DefaultSettings].
func WithSettings(s Settings) Option {
	return func(p *Performer) { p.settings = s }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Performer) { p.metrics = m }
}

// WithProviderName sets the provider label used in metrics.
func WithProviderName(name string) Option {
	return func(p *Performer) { p.name = name }
}

// New returns a Performer backed by provider.
func New(provider llm.Provider, opts ...Option) *Performer {
	p := &Performer{
		provider: provider,
		settings: DefaultSettings(),
		name:     "llm",
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Settings returns the sampling parameters currently in use.
func (p *Performer) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// SetSettings replaces the sampling parameters. Rituals already running keep
// the parameters they started with.
func (p *Performer) SetSettings(s Settings) {
	p.mu.Lock()
	p.settings = s
	p.mu.Unlock()
}

// Perform runs a single-stage ritual and returns the cleaned model output.
// [ModeFullRitual] is not accepted here; use [Performer.FullRitual].
func (p *Performer) Perform(ctx context.Context, req Request) (string, error) {
	if req.Mode == "" {
		req.Mode = ModeResurrect
	}
	prompt, err := Prompt(req.Mode, req.SourceLang, req.TargetLang, req.Code)
	if err != nil {
		return "", err
	}

	ctx, span := observe.StartSpan(ctx, "ritual."+strings.ToLower(string(req.Mode)),
		trace.WithAttributes(
			attribute.String("ritual.mode", string(req.Mode)),
			attribute.String("ritual.target_lang", req.TargetLang),
		),
	)
	defer span.End()

	set := p.Settings()
	start := time.Now()
	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: set.Temperature,
		TopP:        set.TopP,
		TopK:        set.TopK,
	})
	elapsed := time.Since(start).Seconds()
	p.metrics.RecordRitual(ctx, string(req.Mode), elapsed)
	p.metrics.LLMDuration.Record(ctx, elapsed)

	if err != nil {
		p.metrics.RecordProviderRequest(ctx, p.name, "llm", "error")
		p.metrics.RecordProviderError(ctx, p.name, "llm")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observe.Logger(ctx).Error("ritual failed", "mode", req.Mode, "err", err)
		return "", fmt.Errorf("%w: %w", ErrRitualFailed, err)
	}
	p.metrics.RecordProviderRequest(ctx, p.name, "llm", "ok")

	var text string
	if resp != nil {
		text = Clean(resp.Content)
	}
	if text == "" {
		span.SetStatus(codes.Error, "empty response")
		return "", fmt.Errorf("%w: empty response", ErrRitualFailed)
	}
	return text, nil
}

var (
	openingFence = regexp.MustCompile("(?i)^```[a-z]*\n")
	closingFence = regexp.MustCompile("\n```$")
)

// Clean strips a leading and a trailing markdown code fence, then trims
// surrounding whitespace.
func Clean(text string) string {
	text = openingFence.ReplaceAllString(text, "")
	text = closingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Artifacts are the outputs of a full ritual.
type Artifacts struct {
	Autopsy     string `json:"autopsy"`
	Resurrected string `json:"resurrected"`
	Purified    string `json:"purified"`
	Bound       string `json:"bound"`
}

// Combined is the text shown after a full ritual: the autopsy report
// followed by the bound soul.
func (a Artifacts) Combined() string {
	var b strings.Builder
	if a.Autopsy != "" {
		b.WriteString(a.Autopsy)
		b.WriteString("\n\n")
		b.WriteString(strings.Repeat("=", 40))
		b.WriteString("\n\n")
	}
	b.WriteString(a.Bound)
	return b.String()
}

// Result returns the artifact that stands for the ritual's outcome.
func (a Artifacts) Result() string { return a.Bound }

// FullRitual runs every stage in order. onStage, if non-nil, is called
// before each stage starts. The first failing stage aborts the ritual and
// the artifacts gathered so far are returned with the error.
func (p *Performer) FullRitual(ctx context.Context, req Request, onStage func(Mode)) (Artifacts, error) {
	ctx, span := observe.StartSpan(ctx, "ritual.full")
	defer span.End()
	start := time.Now()
	defer func() { p.metrics.RecordRitual(ctx, string(ModeFullRitual), time.Since(start).Seconds()) }()

	var a Artifacts
	stages := []struct {
		mode Mode
		src  string
		code func() string
		out  *string
	}{
		{ModeAutopsy, req.SourceLang, func() string { return req.Code }, &a.Autopsy},
		{ModeResurrect, req.SourceLang, func() string { return req.Code }, &a.Resurrected},
		{ModeCurseRemoval, req.TargetLang, func() string { return a.Resurrected }, &a.Purified},
		{ModeSoulBinding, req.TargetLang, func() string { return a.Purified }, &a.Bound},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return a, fmt.Errorf("%w: %w", ErrRitualFailed, err)
		}
		if onStage != nil {
			onStage(st.mode)
		}
		out, err := p.Perform(ctx, Request{
			SourceLang: st.src,
			TargetLang: req.TargetLang,
			Code:       st.code(),
			Mode:       st.mode,
		})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return a, err
		}
		*st.out = out
	}
	return a, nil
}

// Status returns the progress line shown while mode is running.
func Status(mode Mode) string {
	switch mode {
	case ModeAutopsy:
		return "AUTOPSYING CORPSE..."
	case ModeCurseRemoval:
		return "PURGING CURSES..."
	case ModeSoulBinding:
		return "BINDING SOUL..."
	default:
		return "RESURRECTING SPIRIT..."
	}
}
