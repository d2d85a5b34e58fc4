package graph

import (
	"math"
	"testing"
	"time"
)

func newTestVoice(ctx *Context, start float64) *Voice {
	osc := NewOscillator(ctx, Square, 100)
	gain := NewGain(ctx, osc, nil)
	v := NewVoice(ctx, gain, start)
	v.Gain = gain.Gain
	v.Frequency = osc.Frequency
	return v
}

func TestVoice_StreamStopsAtStopFrame(t *testing.T) {
	t.Parallel()
	ctx := NewContext(1000)
	v := newTestVoice(ctx, 0).Stop(0.25)

	buf := make([][2]float64, 512)
	n, ok := v.Stream(buf)
	if n != 250 || !ok {
		t.Fatalf("Stream = (%d, %v), want (250, true)", n, ok)
	}
	if !v.Ended() {
		t.Error("Ended() = false after the stop frame")
	}
	n, ok = v.Stream(buf)
	if n != 0 || ok {
		t.Errorf("Stream after stop = (%d, %v), want (0, false)", n, ok)
	}
}

func TestVoice_BusDropsEndedVoice(t *testing.T) {
	t.Parallel()
	ctx := NewContext(1000)
	v := newTestVoice(ctx, 0).Stop(0.3)
	v.Start()

	if got := ctx.Bus().Len(); got != 1 {
		t.Fatalf("Bus().Len() = %d, want 1", got)
	}
	ctx.Advance(time.Second)
	if got := ctx.Bus().Len(); got != 0 {
		t.Errorf("Bus().Len() after stop = %d, want 0", got)
	}
	if !v.Ended() {
		t.Error("Ended() = false")
	}
}

func TestVoice_WithoutStopPlaysForever(t *testing.T) {
	t.Parallel()
	ctx := NewContext(1000)
	v := newTestVoice(ctx, 0)
	if !math.IsInf(v.StopTime(), 1) {
		t.Fatalf("StopTime() = %v, want +Inf", v.StopTime())
	}
	v.Start()
	ctx.Advance(5 * time.Second)
	if got := ctx.Bus().Len(); got != 1 {
		t.Errorf("Bus().Len() = %d, want 1", got)
	}
}

func TestVoice_StartIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := NewContext(1000)
	v := newTestVoice(ctx, 0)
	v.Start()
	v.Start()
	if got := ctx.Bus().Len(); got != 1 {
		t.Errorf("Bus().Len() = %d, want 1", got)
	}
}

func TestVoice_StopRelativeToAttachTime(t *testing.T) {
	t.Parallel()
	ctx := NewContext(1024)
	ctx.Advance(500 * time.Millisecond)

	start := ctx.CurrentTime()
	v := newTestVoice(ctx, start).Stop(start + 0.125)
	if v.StartTime() != start {
		t.Errorf("StartTime() = %v, want %v", v.StartTime(), start)
	}

	buf := make([][2]float64, 512)
	if n, _ := v.Stream(buf); n != 128 {
		t.Errorf("Stream returned %d frames, want 128", n)
	}
}

func TestContext_CurrentTime(t *testing.T) {
	t.Parallel()
	ctx := NewContext(1000)
	if got := ctx.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime() = %v, want 0", got)
	}
	ctx.Advance(1500 * time.Millisecond)
	if got := ctx.CurrentTime(); !approx(got, 1.5) {
		t.Errorf("CurrentTime() = %v, want 1.5", got)
	}
	if got := ctx.Now(); got != 1500*time.Millisecond {
		t.Errorf("Now() = %v, want 1.5s", got)
	}
}

func TestBus_MasterGainScalesOutput(t *testing.T) {
	t.Parallel()

	render := func(master float64) float64 {
		ctx := NewContext(1000)
		ctx.Bus().Gain.SetValueAtTime(master, 0)
		newTestVoice(ctx, 0).Start()

		buf := make([][2]float64, 256)
		ctx.Stream(buf)
		peak := 0.0
		for _, s := range buf {
			peak = max(peak, math.Abs(s[0]), math.Abs(s[1]))
		}
		return peak
	}

	if got := render(0); got != 0 {
		t.Errorf("peak with master 0 = %v, want 0", got)
	}
	if got := render(1); got == 0 {
		t.Error("peak with master 1 = 0, want audible output")
	}
}

func TestContext_StreamNeverDrains(t *testing.T) {
	t.Parallel()
	ctx := NewContext(1000)
	buf := make([][2]float64, 300)
	buf[10] = [2]float64{1, 1}
	n, ok := ctx.Stream(buf)
	if n != 300 || !ok {
		t.Errorf("Stream = (%d, %v), want (300, true)", n, ok)
	}
	if buf[10] != [2]float64{} {
		t.Errorf("empty bus produced %v, want silence", buf[10])
	}
}
