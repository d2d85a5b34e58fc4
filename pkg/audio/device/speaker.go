package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// Speaker plays through the beep speaker package. Only one Speaker may be
// started per process.
type Speaker struct {
	// Buffer is the speaker buffer length. Zero means 100ms.
	Buffer time.Duration

	mu      sync.Mutex
	started bool
}

// Start implements [Device].
func (s *Speaker) Start(src beep.Streamer, rate beep.SampleRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("device: speaker already started")
	}

	buf := s.Buffer
	if buf <= 0 {
		buf = 100 * time.Millisecond
	}
	if err := speaker.Init(rate, rate.N(buf)); err != nil {
		return fmt.Errorf("device: init speaker: %w", err)
	}
	speaker.Play(src)
	s.started = true
	return nil
}

// Close implements [Device].
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	s.started = false
	return nil
}
