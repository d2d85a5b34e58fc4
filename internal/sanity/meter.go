// Package sanity tracks how much of the user's mind is left and haunts them
// accordingly.
//
// A [Meter] drains slowly while the application runs and is refilled by an
// explicit restore. A [Haunter] reads the meter to pace heartbeats and plays
// random scares in response to user input.
package sanity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/necromancer/internal/observe"
)

// Meter bounds. Floor is the default lower bound; see [WithFloor].
const (
	Max   = 100
	Floor = 20
)

// DecayInterval is how often [Meter.Run] drains one point.
const DecayInterval = 10 * time.Second

// Meter is the sanity level. It is safe for concurrent use.
type Meter struct {
	mu       sync.Mutex
	level    int
	floor    int
	interval time.Duration

	metrics   *observe.Metrics
	newTicker func(time.Duration) (<-chan time.Time, func())
	reset     chan struct{}
}

// MeterOption is a functional option for [NewMeter].
type MeterOption func(*Meter)

// WithMeterMetrics sets the metrics sink. The default is
// [observe.DefaultMetrics].
func WithMeterMetrics(m *observe.Metrics) MeterOption {
	return func(s *Meter) { s.metrics = m }
}

// WithDecayInterval overrides [DecayInterval].
func WithDecayInterval(d time.Duration) MeterOption {
	return func(s *Meter) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithFloor overrides [Floor]. Values outside [0, Max] are ignored.
func WithFloor(f int) MeterOption {
	return func(s *Meter) {
		if f >= 0 && f <= Max {
			s.floor = f
		}
	}
}

// WithTicker replaces the ticker used by [Meter.Run]. fn returns the tick
// channel and a stop function.
func WithTicker(fn func(time.Duration) (<-chan time.Time, func())) MeterOption {
	return func(s *Meter) { s.newTicker = fn }
}

// NewMeter returns a meter at full sanity.
func NewMeter(opts ...MeterOption) *Meter {
	m := &Meter{
		level:    Max,
		floor:    Floor,
		interval: DecayInterval,
		reset:    make(chan struct{}, 1),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	m.record(Max)
	return m
}

// Level returns the current sanity.
func (m *Meter) Level() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Decay drains one point, never going below the floor, and returns the new
// level.
func (m *Meter) Decay() int {
	m.mu.Lock()
	if m.level > m.floor {
		m.level--
	}
	level := m.level
	m.mu.Unlock()
	m.record(level)
	return level
}

// Restore refills sanity to [Max].
func (m *Meter) Restore() {
	m.mu.Lock()
	m.level = Max
	m.mu.Unlock()
	m.record(Max)
	slog.Debug("sanity restored")
}

// Configure changes the floor and the decay interval while the meter runs.
// Zero values keep the current setting. A level below the new floor is
// raised to it.
func (m *Meter) Configure(floor int, interval time.Duration) {
	m.mu.Lock()
	if floor > 0 && floor <= Max {
		m.floor = floor
		m.level = max(m.level, floor)
	}
	changed := interval > 0 && interval != m.interval
	if changed {
		m.interval = interval
	}
	m.mu.Unlock()

	if changed {
		select {
		case m.reset <- struct{}{}:
		default:
		}
	}
}

// Run decays the meter once per interval until ctx is cancelled.
func (m *Meter) Run(ctx context.Context) error {
	for {
		m.mu.Lock()
		interval := m.interval
		m.mu.Unlock()

		tick, stop := m.newTicker(interval)
		restart := m.loop(ctx, tick)
		stop()
		if !restart {
			return nil
		}
	}
}

func (m *Meter) loop(ctx context.Context, tick <-chan time.Time) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-m.reset:
			return true
		case <-tick:
			m.Decay()
		}
	}
}

func (m *Meter) record(level int) {
	m.metrics.SanityLevel.Record(context.Background(), int64(level))
}
