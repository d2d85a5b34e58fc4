package graph

import (
	"math"
	"sort"
)

// MinExpValue is the floor substituted for non-positive values in exponential
// ramps. Exponential interpolation is undefined at zero, so neither end of an
// exponential segment is ever allowed to reach it.
const MinExpValue = 0.0001

// EventKind identifies the type of an automation event.
type EventKind int

const (
	// EventSetValue jumps to Value at Time.
	EventSetValue EventKind = iota

	// EventLinearRamp interpolates linearly from the previous event to Value,
	// arriving at Time.
	EventLinearRamp

	// EventExponentialRamp interpolates exponentially from the previous event
	// to Value, arriving at Time.
	EventExponentialRamp

	// EventSetTarget approaches Value asymptotically starting at Time with
	// the given TimeConstant.
	EventSetTarget
)

// String returns the human-readable name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSetValue:
		return "set"
	case EventLinearRamp:
		return "linear"
	case EventExponentialRamp:
		return "exponential"
	case EventSetTarget:
		return "target"
	default:
		return "unknown"
	}
}

// Event is a single scheduled automation point. Times are in seconds on the
// owning [Context] clock.
type Event struct {
	Kind         EventKind
	Time         float64
	Value        float64
	TimeConstant float64
}

// Param is a time-automated parameter such as a gain or a frequency.
//
// Param is not safe for concurrent use. Parameters of a voice are only
// mutated before the voice is started; parameters that are already being
// rendered (the master gain) must be mutated inside [Context.Do].
type Param struct {
	def    float64
	events []Event
}

// NewParam returns a Param whose value is v until an event says otherwise.
func NewParam(v float64) *Param {
	return &Param{def: v}
}

// Default returns the value the parameter holds before any event.
func (p *Param) Default() float64 { return p.def }

// Events returns a copy of the scheduled events in time order.
func (p *Param) Events() []Event {
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// SetValueAtTime schedules an instant change to v at time t.
func (p *Param) SetValueAtTime(v, t float64) *Param {
	p.insert(Event{Kind: EventSetValue, Time: t, Value: v})
	return p
}

// LinearRampToValueAtTime schedules a linear ramp that reaches v at time t.
func (p *Param) LinearRampToValueAtTime(v, t float64) *Param {
	p.insert(Event{Kind: EventLinearRamp, Time: t, Value: v})
	return p
}

// ExponentialRampToValueAtTime schedules an exponential ramp that reaches v
// at time t. Targets at or below zero are replaced by [MinExpValue].
func (p *Param) ExponentialRampToValueAtTime(v, t float64) *Param {
	p.insert(Event{Kind: EventExponentialRamp, Time: t, Value: expFloor(v)})
	return p
}

// SetTargetAtTime starts an asymptotic approach towards v at time t. After
// one timeConstant the parameter has covered about 63% of the distance.
func (p *Param) SetTargetAtTime(v, t, timeConstant float64) *Param {
	if timeConstant <= 0 {
		return p.SetValueAtTime(v, t)
	}
	p.insert(Event{Kind: EventSetTarget, Time: t, Value: v, TimeConstant: timeConstant})
	return p
}

// CancelScheduledValues removes every event scheduled at or after t.
func (p *Param) CancelScheduledValues(t float64) *Param {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].Time >= t })
	p.events = p.events[:i]
	return p
}

// CancelAndHoldAtTime freezes the curve at its value at t. Every event is
// replaced by a single set-value event at t, so events already in the past
// stop costing anything to evaluate.
func (p *Param) CancelAndHoldAtTime(t float64) *Param {
	v := p.ValueAt(t)
	p.events = append(p.events[:0], Event{Kind: EventSetValue, Time: t, Value: v})
	return p
}

// insert keeps events ordered by time; equal times keep insertion order.
func (p *Param) insert(e Event) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].Time > e.Time })
	p.events = append(p.events, Event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

// ValueAt evaluates the automation curve at time t.
//
// A ramp with no preceding event starts from the default value at time zero.
func (p *Param) ValueAt(t float64) float64 {
	v := p.def
	t0 := 0.0

	for i, e := range p.events {
		if e.Time > t {
			switch e.Kind {
			case EventLinearRamp:
				return linear(t0, v, e.Time, e.Value, t)
			case EventExponentialRamp:
				return exponential(t0, v, e.Time, e.Value, t)
			}
			return v
		}

		switch e.Kind {
		case EventSetTarget:
			end := t
			if i+1 < len(p.events) {
				next := p.events[i+1]
				if next.Kind == EventLinearRamp || next.Kind == EventExponentialRamp {
					// A ramp replaces the approach from its start point.
					t0 = e.Time
					continue
				}
				if next.Time <= t {
					end = next.Time
				}
			}
			v = e.Value + (v-e.Value)*math.Exp(-(end-e.Time)/e.TimeConstant)
			t0 = end
		default:
			v = e.Value
			t0 = e.Time
		}
	}
	return v
}

func linear(t0, v0, t1, v1, t float64) float64 {
	if t1 <= t0 {
		return v1
	}
	return v0 + (v1-v0)*(t-t0)/(t1-t0)
}

func exponential(t0, v0, t1, v1, t float64) float64 {
	if t1 <= t0 {
		return v1
	}
	v0, v1 = expFloor(v0), expFloor(v1)
	return v0 * math.Pow(v1/v0, (t-t0)/(t1-t0))
}

func expFloor(v float64) float64 {
	if v < MinExpValue {
		return MinExpValue
	}
	return v
}
