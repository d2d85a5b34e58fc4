package sanity

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MrWong99/necromancer/pkg/audio/graph"
)

// Heartbeat pacing: PerPoint per sanity point, never faster than
// MinHeartbeat.
const (
	PerPoint     = 50 * time.Millisecond
	MinHeartbeat = 2 * time.Second
)

// A roll above the threshold triggers the haunting.
const (
	heartbeatThreshold = 0.6
	typingThreshold    = 0.7
)

// Player is the part of the audio engine a [Haunter] needs.
type Player interface {
	PlayHeartbeat() *graph.Voice
	PlayGlitch() *graph.Voice
	PlayWhisper() *graph.Voice
	PlayTypingTick() *graph.Voice
}

// Haunter plays scares on a [Player], paced by a [Meter].
// It is safe for concurrent use.
type Haunter struct {
	player Player
	meter  *Meter

	rndMu sync.Mutex
	rnd   graph.Rand
	after func(time.Duration) <-chan time.Time
}

// HaunterOption is a functional option for [NewHaunter].
type HaunterOption func(*Haunter)

// WithRand sets the random source for every roll.
func WithRand(r graph.Rand) HaunterOption {
	return func(h *Haunter) { h.rnd = r }
}

// WithAfter replaces [time.After] in [Haunter.Run].
func WithAfter(fn func(time.Duration) <-chan time.Time) HaunterOption {
	return func(h *Haunter) { h.after = fn }
}

// NewHaunter returns a Haunter playing on p, paced by m.
func NewHaunter(p Player, m *Meter, opts ...HaunterOption) *Haunter {
	h := &Haunter{
		player: p,
		meter:  m,
		rnd:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		after:  time.After,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HeartbeatDelay is the wait before the next heartbeat roll at level.
func HeartbeatDelay(level int) time.Duration {
	return max(MinHeartbeat, time.Duration(level)*PerPoint)
}

// Run rolls for a heartbeat after every [HeartbeatDelay] until ctx is
// cancelled. Lower sanity means faster rolls.
func (h *Haunter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.after(HeartbeatDelay(h.meter.Level())):
		}
		if h.roll() > heartbeatThreshold {
			h.player.PlayHeartbeat()
		}
	}
}

// OnEnter rolls a five-sided die when the user presses enter. A zero plays a
// glitch and a two plays a whisper.
func (h *Haunter) OnEnter() {
	switch int(h.roll() * 5) {
	case 0:
		h.player.PlayGlitch()
	case 2:
		h.player.PlayWhisper()
	}
}

// OnKeystroke sometimes plays a typing tick.
func (h *Haunter) OnKeystroke() {
	if h.roll() > typingThreshold {
		h.player.PlayTypingTick()
	}
}

func (h *Haunter) roll() float64 {
	h.rndMu.Lock()
	defer h.rndMu.Unlock()
	return h.rnd.Float64()
}
