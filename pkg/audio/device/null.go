package device

import (
	"errors"
	"sync"
	"time"

	"github.com/gopxl/beep"
)

// Null pulls the stream at real time and discards it. Voices still play
// out and finish on schedule, which keeps the engine behaving the same on
// hosts without sound hardware.
type Null struct {
	// Period is the render period. Zero means 20ms.
	Period time.Duration

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// Start implements [Device].
func (n *Null) Start(src beep.Streamer, rate beep.SampleRate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return errors.New("device: null already started")
	}
	n.stop = make(chan struct{})
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		_ = pump(src, rate, period(n.Period), n.stop, func(_ [][2]float64, buf []byte) ([]byte, error) {
			return buf, nil
		})
	}()
	return nil
}

// Close implements [Device].
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop == nil {
		return nil
	}
	close(n.stop)
	n.wg.Wait()
	n.stop = nil
	return nil
}
