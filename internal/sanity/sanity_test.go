package sanity

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/goleak"

	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/pkg/audio/graph"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// seqRand returns its values in order, repeating the last one.
type seqRand struct {
	mu   sync.Mutex
	vals []float64
}

func (r *seqRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[0]
	if len(r.vals) > 1 {
		r.vals = r.vals[1:]
	}
	return v
}

type fakePlayer struct {
	mu    sync.Mutex
	plays map[string]int
	beat  chan struct{}
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{plays: map[string]int{}, beat: make(chan struct{}, 16)}
}

func (p *fakePlayer) record(kind string) *graph.Voice {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays[kind]++
	return nil
}

func (p *fakePlayer) PlayHeartbeat() *graph.Voice {
	p.record("heartbeat")
	p.beat <- struct{}{}
	return nil
}
func (p *fakePlayer) PlayGlitch() *graph.Voice     { return p.record("glitch") }
func (p *fakePlayer) PlayWhisper() *graph.Voice    { return p.record("whisper") }
func (p *fakePlayer) PlayTypingTick() *graph.Voice { return p.record("typing") }

func (p *fakePlayer) count(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays[kind]
}

func TestMeter_DecayStopsAtFloor(t *testing.T) {
	t.Parallel()
	m := NewMeter(WithMeterMetrics(testMetrics(t)))
	if got := m.Level(); got != Max {
		t.Fatalf("Level() = %d, want %d", got, Max)
	}
	for range 200 {
		m.Decay()
	}
	if got := m.Level(); got != Floor {
		t.Errorf("Level() after 200 decays = %d, want %d", got, Floor)
	}
	m.Restore()
	if got := m.Level(); got != Max {
		t.Errorf("Level() after Restore = %d, want %d", got, Max)
	}
}

func TestMeter_RunDecaysOnTick(t *testing.T) {
	t.Parallel()
	ticks := make(chan time.Time)
	var gotInterval time.Duration
	stopped := make(chan struct{})
	m := NewMeter(
		WithMeterMetrics(testMetrics(t)),
		WithTicker(func(d time.Duration) (<-chan time.Time, func()) {
			gotInterval = d
			return ticks, func() { close(stopped) }
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	for range 3 {
		ticks <- time.Now()
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	<-stopped

	if gotInterval != DecayInterval {
		t.Errorf("ticker interval = %v, want %v", gotInterval, DecayInterval)
	}
	if got := m.Level(); got != Max-3 {
		t.Errorf("Level() = %d, want %d", got, Max-3)
	}
}

func TestHeartbeatDelay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level int
		want  time.Duration
	}{
		{100, 5 * time.Second},
		{60, 3 * time.Second},
		{40, 2 * time.Second},
		{20, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := HeartbeatDelay(tt.level); got != tt.want {
			t.Errorf("HeartbeatDelay(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestHaunter_RunPacesHeartbeats(t *testing.T) {
	t.Parallel()
	p := newFakePlayer()
	m := NewMeter(WithMeterMetrics(testMetrics(t)))
	for range 50 {
		m.Decay()
	}

	delays := make(chan time.Duration, 16)
	fire := make(chan time.Time)
	h := NewHaunter(p, m,
		WithRand(&seqRand{vals: []float64{0.5, 0.9}}),
		WithAfter(func(d time.Duration) <-chan time.Time {
			delays <- d
			return fire
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	if d := <-delays; d != 2500*time.Millisecond {
		t.Errorf("first delay = %v, want 2.5s", d)
	}
	fire <- time.Now() // roll 0.5: no heartbeat
	<-delays
	fire <- time.Now() // roll 0.9: heartbeat
	<-p.beat
	<-delays
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	if got := p.count("heartbeat"); got != 1 {
		t.Errorf("heartbeats = %d, want 1", got)
	}
}

func TestHaunter_OnEnter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		roll          float64
		glitch, whisp int
	}{
		{0.1, 1, 0},
		{0.3, 0, 0},
		{0.5, 0, 1},
		{0.7, 0, 0},
		{0.95, 0, 0},
	}
	for _, tt := range tests {
		p := newFakePlayer()
		h := NewHaunter(p, NewMeter(WithMeterMetrics(testMetrics(t))), WithRand(&seqRand{vals: []float64{tt.roll}}))
		h.OnEnter()
		if p.count("glitch") != tt.glitch || p.count("whisper") != tt.whisp {
			t.Errorf("roll %v: glitch %d whisper %d, want %d and %d",
				tt.roll, p.count("glitch"), p.count("whisper"), tt.glitch, tt.whisp)
		}
	}
}

func TestHaunter_OnKeystroke(t *testing.T) {
	t.Parallel()
	p := newFakePlayer()
	h := NewHaunter(p, NewMeter(WithMeterMetrics(testMetrics(t))),
		WithRand(&seqRand{vals: []float64{0.2, 0.71, 0.7, 0.99}}))
	for range 4 {
		h.OnKeystroke()
	}
	if got := p.count("typing"); got != 2 {
		t.Errorf("typing ticks = %d, want 2", got)
	}
}

func TestMeter_Configure(t *testing.T) {
	t.Parallel()
	m := NewMeter(WithMeterMetrics(testMetrics(t)), WithFloor(90))
	for range 50 {
		m.Decay()
	}
	if got := m.Level(); got != 90 {
		t.Fatalf("Level() = %d, want 90", got)
	}
	m.Configure(95, 0)
	if got := m.Level(); got != 95 {
		t.Errorf("Level() after raising the floor = %d, want 95", got)
	}
	m.Configure(0, 0)
	if got := m.Decay(); got != 95 {
		t.Errorf("Decay() with unchanged floor = %d, want 95", got)
	}
}

func TestMeter_ConfigureRestartsTicker(t *testing.T) {
	t.Parallel()
	intervals := make(chan time.Duration, 4)
	m := NewMeter(
		WithMeterMetrics(testMetrics(t)),
		WithDecayInterval(time.Minute),
		WithTicker(func(d time.Duration) (<-chan time.Time, func()) {
			intervals <- d
			return nil, func() {}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	if d := <-intervals; d != time.Minute {
		t.Errorf("first interval = %v, want 1m", d)
	}
	m.Configure(0, time.Second)
	if d := <-intervals; d != time.Second {
		t.Errorf("interval after Configure = %v, want 1s", d)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}
