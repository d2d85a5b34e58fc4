// Package altar performs a ritual end to end: it restores the visitor's
// sanity, screams, runs the ritual, buries the result in the graveyard and
// has the demon read the beginning of it aloud.
//
// Both the HTTP API and the MCP tools summon through an [Altar], so a
// ritual sounds and persists the same way whichever door it came through.
package altar

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MrWong99/necromancer/internal/graveyard"
	"github.com/MrWong99/necromancer/internal/horror"
	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/internal/ritual"
	"github.com/MrWong99/necromancer/pkg/audio/graph"
)

// Effects is the part of the horror engine a ritual uses.
type Effects interface {
	Play(kind horror.Kind) *graph.Voice
	Speak(text string)
}

// Rituals performs rituals. [*ritual.Performer] implements it.
type Rituals interface {
	Perform(ctx context.Context, req ritual.Request) (string, error)
	FullRitual(ctx context.Context, req ritual.Request, onStage func(ritual.Mode)) (ritual.Artifacts, error)
}

// Restorer refills the visitor's sanity. [*sanity.Meter] implements it.
type Restorer interface {
	Restore()
}

// Outcome is what a successful ritual produced.
type Outcome struct {
	Mode   ritual.Mode `json:"mode"`
	Result string      `json:"result"`

	// Artifacts holds every stage's output of a full ritual.
	Artifacts *ritual.Artifacts `json:"artifacts,omitempty"`

	// Grave is nil when the graveyard could not take the result.
	Grave *graveyard.Grave `json:"grave,omitempty"`
}

// Altar is safe for concurrent use.
type Altar struct {
	effects Effects
	rituals Rituals
	graves  graveyard.Store
	sanity  Restorer
	now     func() time.Time

	speakLimit atomic.Int64
}

// Option is a functional option for [New].
type Option func(*Altar)

// WithSanity restores r at the start of every ritual.
func WithSanity(r Restorer) Option {
	return func(a *Altar) { a.sanity = r }
}

// WithClock sets the clock used to date graves.
func WithClock(now func() time.Time) Option {
	return func(a *Altar) { a.now = now }
}

// WithSpeakLimit sets how many characters of a result are read aloud when
// a ritual succeeds. By default results are not spoken.
func WithSpeakLimit(n int) Option {
	return func(a *Altar) { a.speakLimit.Store(int64(n)) }
}

// New returns an Altar.
func New(effects Effects, rituals Rituals, graves graveyard.Store, opts ...Option) *Altar {
	a := &Altar{
		effects: effects,
		rituals: rituals,
		graves:  graves,
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SetSpeakLimit changes the speak limit while rituals run.
func (a *Altar) SetSpeakLimit(n int) {
	a.speakLimit.Store(int64(n))
}

// Summon performs req. [ritual.ModeFullRitual] runs every stage. On failure
// a second scream is played and the error wraps [ritual.ErrRitualFailed].
func (a *Altar) Summon(ctx context.Context, req ritual.Request) (Outcome, error) {
	if req.Mode == "" {
		req.Mode = ritual.ModeResurrect
	}
	if a.sanity != nil {
		a.sanity.Restore()
	}
	a.effects.Play(horror.KindScream)

	log := observe.Logger(ctx)
	out := Outcome{Mode: req.Mode}
	if req.Mode == ritual.ModeFullRitual {
		arts, err := a.rituals.FullRitual(ctx, req, func(m ritual.Mode) {
			log.Info("ritual stage", "mode", m, "status", ritual.Status(m))
		})
		if err != nil {
			return Outcome{}, a.failed(ctx, err)
		}
		out.Result = arts.Result()
		out.Artifacts = &arts
	} else {
		res, err := a.rituals.Perform(ctx, req)
		if err != nil {
			return Outcome{}, a.failed(ctx, err)
		}
		out.Result = res
	}

	g := graveyard.NewGrave(req, out.Result, a.now())
	if err := a.graves.Append(ctx, g); err != nil {
		log.Warn("could not bury ritual result", "err", err)
	} else {
		out.Grave = &g
	}

	if n := int(a.speakLimit.Load()); n > 0 {
		a.effects.Speak(firstRunes(out.Result, n))
	}
	return out, nil
}

func (a *Altar) failed(ctx context.Context, err error) error {
	observe.Logger(ctx).Warn("ritual failed", "err", err)
	a.effects.Play(horror.KindScream)
	return err
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
