// Package device sends a rendered audio stream to the machine's sound output.
//
// A [Device] pulls a [beep.Streamer] on its own goroutine for as long as it
// is running. Three implementations exist: [Speaker] uses the gopxl/beep
// speaker (oto), [Pipe] writes raw PCM into an external player such as pacat
// or aplay, and [Null] consumes the stream at real time without output.
package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/gopxl/beep"
)

// ErrNoBackend is returned when no audio output is available on this host.
var ErrNoBackend = errors.New("device: no audio backend available")

// Device plays one stream until closed.
type Device interface {
	// Start begins pulling src at the given sample rate. It returns once
	// playback is running. Start may be called at most once.
	Start(src beep.Streamer, rate beep.SampleRate) error

	// Close stops playback and releases the output.
	Close() error
}

// Backend names accepted by [New].
const (
	BackendAuto    = "auto"
	BackendSpeaker = "speaker"
	BackendPipe    = "pipe"
	BackendNone    = "none"
)

// New returns the device for the named backend. "auto" and "" return a
// [Fallback] over a [Speaker] and a [Pipe]; callers fall back to [Null]
// when Start fails. buffer is the output latency target.
func New(backend string, buffer time.Duration) (Device, error) {
	switch backend {
	case "", BackendAuto:
		return &Fallback{Devices: []Device{&Speaker{Buffer: buffer}, &Pipe{Period: buffer}}}, nil
	case BackendSpeaker:
		return &Speaker{Buffer: buffer}, nil
	case BackendPipe:
		return &Pipe{Period: buffer}, nil
	case BackendNone:
		return &Null{Period: buffer}, nil
	default:
		return nil, fmt.Errorf("device: unknown backend %q", backend)
	}
}

// Fallback starts the first of Devices that starts successfully.
type Fallback struct {
	Devices []Device

	active Device
}

// Start implements [Device]. It returns the joined errors of every device
// when none starts.
func (f *Fallback) Start(src beep.Streamer, rate beep.SampleRate) error {
	if f.active != nil {
		return errors.New("device: fallback already started")
	}
	var errs []error
	for _, d := range f.Devices {
		err := d.Start(src, rate)
		if err == nil {
			f.active = d
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrNoBackend
	}
	return errors.Join(errs...)
}

// Close implements [Device].
func (f *Fallback) Close() error {
	if f.active == nil {
		return nil
	}
	return f.active.Close()
}
