package graph

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestParam_DefaultBeforeEvents(t *testing.T) {
	t.Parallel()
	p := NewParam(0.42)
	if got := p.ValueAt(10); got != 0.42 {
		t.Errorf("ValueAt(10) = %v, want 0.42", got)
	}
	p.SetValueAtTime(1, 5)
	if got := p.ValueAt(4.999); got != 0.42 {
		t.Errorf("ValueAt before first event = %v, want 0.42", got)
	}
	if got := p.ValueAt(5); got != 1 {
		t.Errorf("ValueAt at event time = %v, want 1", got)
	}
}

func TestParam_LinearRamp(t *testing.T) {
	t.Parallel()
	p := NewParam(0)
	p.SetValueAtTime(0, 1).LinearRampToValueAtTime(1, 2)

	tests := []struct {
		at   float64
		want float64
	}{
		{0.5, 0},
		{1, 0},
		{1.25, 0.25},
		{1.5, 0.5},
		{2, 1},
		{3, 1},
	}
	for _, tt := range tests {
		if got := p.ValueAt(tt.at); !approx(got, tt.want) {
			t.Errorf("ValueAt(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestParam_LinearRampWithoutPrecedingEvent(t *testing.T) {
	t.Parallel()
	p := NewParam(0).LinearRampToValueAtTime(1, 2)
	if got := p.ValueAt(1); !approx(got, 0.5) {
		t.Errorf("ValueAt(1) = %v, want 0.5", got)
	}
}

func TestParam_ExponentialRamp(t *testing.T) {
	t.Parallel()
	p := NewParam(0)
	p.SetValueAtTime(1, 0).ExponentialRampToValueAtTime(0.01, 1)

	if got := p.ValueAt(0.5); !approx(got, 0.1) {
		t.Errorf("ValueAt(0.5) = %v, want 0.1", got)
	}
	if got := p.ValueAt(1); !approx(got, 0.01) {
		t.Errorf("ValueAt(1) = %v, want 0.01", got)
	}
}

func TestParam_ExponentialRampFloorsZero(t *testing.T) {
	t.Parallel()
	p := NewParam(0)
	p.SetValueAtTime(0, 0).ExponentialRampToValueAtTime(0, 1)

	ev := p.Events()
	if last := ev[len(ev)-1]; last.Value != MinExpValue {
		t.Errorf("scheduled target = %v, want %v", last.Value, MinExpValue)
	}
	for _, at := range []float64{0.001, 0.5, 1, 2} {
		if got := p.ValueAt(at); got <= 0 {
			t.Errorf("ValueAt(%v) = %v, want > 0", at, got)
		}
	}

	p = NewParam(0).ExponentialRampToValueAtTime(-3, 1)
	if got := p.Events()[0].Value; got != MinExpValue {
		t.Errorf("negative target scheduled as %v, want %v", got, MinExpValue)
	}
}

func TestParam_SetTarget(t *testing.T) {
	t.Parallel()
	p := NewParam(1).SetTargetAtTime(0, 0, 0.5)

	if got, want := p.ValueAt(0.5), math.Exp(-1); !approx(got, want) {
		t.Errorf("ValueAt(tau) = %v, want %v", got, want)
	}

	up := NewParam(0).SetTargetAtTime(1, 2, 0.5)
	got := up.ValueAt(2.1)
	if got <= 0 || got >= 1 {
		t.Errorf("ValueAt(t0+0.1) = %v, want strictly between 0 and 1", got)
	}
	if want := 1 - math.Exp(-0.2); !approx(got, want) {
		t.Errorf("ValueAt(t0+0.1) = %v, want %v", got, want)
	}
}

func TestParam_SetTargetZeroTimeConstantJumps(t *testing.T) {
	t.Parallel()
	p := NewParam(0).SetTargetAtTime(1, 1, 0)
	if got := p.Events()[0].Kind; got != EventSetValue {
		t.Errorf("kind = %v, want %v", got, EventSetValue)
	}
	if got := p.ValueAt(1); got != 1 {
		t.Errorf("ValueAt(1) = %v, want 1", got)
	}
}

func TestParam_SetTargetFollowedByEvent(t *testing.T) {
	t.Parallel()
	p := NewParam(1)
	p.SetTargetAtTime(0, 0, 1)
	p.LinearRampToValueAtTime(0.5, 2)

	// A ramp starts from the target event, not from the approach curve.
	if got := p.ValueAt(1); !approx(got, 0.75) {
		t.Errorf("ValueAt(1) = %v, want 0.75", got)
	}
	if got := p.ValueAt(5); !approx(got, 0.5) {
		t.Errorf("ValueAt(5) = %v, want 0.5", got)
	}

	q := NewParam(1)
	q.SetTargetAtTime(0, 0, 1)
	q.SetValueAtTime(0.3, 2)
	if got, want := q.ValueAt(1), math.Exp(-1); !approx(got, want) {
		t.Errorf("ValueAt(1) = %v, want %v", got, want)
	}
	if got := q.ValueAt(3); got != 0.3 {
		t.Errorf("ValueAt(3) = %v, want 0.3", got)
	}
}

func TestParam_CancelScheduledValues(t *testing.T) {
	t.Parallel()
	p := NewParam(0)
	p.SetValueAtTime(1, 1).SetValueAtTime(2, 2).SetValueAtTime(3, 3)
	p.CancelScheduledValues(2)

	if got := len(p.Events()); got != 1 {
		t.Fatalf("len(Events) = %d, want 1", got)
	}
	if got := p.ValueAt(10); got != 1 {
		t.Errorf("ValueAt(10) = %v, want 1", got)
	}
}

func TestParam_CancelAndHoldAtTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		build func(*Param)
		at    float64
		want  float64
	}{
		{"mid linear ramp", func(p *Param) { p.SetValueAtTime(0, 0).LinearRampToValueAtTime(1, 2) }, 1, 0.5},
		{"after steps", func(p *Param) { p.SetValueAtTime(0.3, 1).SetValueAtTime(0.6, 2).SetValueAtTime(0.9, 5) }, 3, 0.6},
		{"no events", func(*Param) {}, 4, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewParam(0.25)
			tt.build(p)
			p.CancelAndHoldAtTime(tt.at)

			ev := p.Events()
			if len(ev) != 1 || ev[0].Kind != EventSetValue || ev[0].Time != tt.at {
				t.Fatalf("Events = %+v, want one set event at %v", ev, tt.at)
			}
			for _, at := range []float64{tt.at, tt.at + 10} {
				if got := p.ValueAt(at); !approx(got, tt.want) {
					t.Errorf("ValueAt(%v) = %v, want held %v", at, got, tt.want)
				}
			}
		})
	}
}

func TestParam_RepeatedTransitionsStayBounded(t *testing.T) {
	t.Parallel()
	p := NewParam(1)
	for i := range 1000 {
		now := float64(i) * 0.01
		target := float64(i % 2)
		p.CancelAndHoldAtTime(now).SetTargetAtTime(target, now, 0.05)
		if n := len(p.Events()); n > 2 {
			t.Fatalf("after %d transitions len(Events) = %d, want <= 2", i+1, n)
		}
	}
}

func TestParam_EqualTimesKeepInsertionOrder(t *testing.T) {
	t.Parallel()
	p := NewParam(0)
	p.SetValueAtTime(0.5, 1)
	p.SetValueAtTime(0.7, 1)
	if got := p.ValueAt(1); got != 0.7 {
		t.Errorf("ValueAt(1) = %v, want 0.7", got)
	}
}

func TestParam_MuteTransition(t *testing.T) {
	t.Parallel()
	// What the mute controller does at now=3 while a previous transition is
	// still in flight.
	p := NewParam(1)
	p.SetTargetAtTime(0, 1, 0.5)

	now := 3.0
	v := p.ValueAt(now)
	p.CancelAndHoldAtTime(now).SetTargetAtTime(1, now, 0.5)

	if got := p.ValueAt(now); !approx(got, v) {
		t.Errorf("ValueAt(now) = %v, want continuous %v", got, v)
	}
	mid := p.ValueAt(now + 0.1)
	if mid <= v || mid >= 1 {
		t.Errorf("ValueAt(now+0.1) = %v, want in (%v, 1)", mid, v)
	}
	if got := p.ValueAt(now + 10); math.Abs(got-1) > 1e-6 {
		t.Errorf("ValueAt(now+10) = %v, want ~1", got)
	}
}

func TestEventKind_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventSetValue, "set"},
		{EventLinearRamp, "linear"},
		{EventExponentialRamp, "exponential"},
		{EventSetTarget, "target"},
		{EventKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("EventKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
