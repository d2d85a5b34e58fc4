package device

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/gopxl/beep"

	"github.com/MrWong99/necromancer/pkg/audio"
)

// Backend is an external player that reads raw stereo s16le PCM on stdin.
type Backend struct {
	Name string
	Path string
	Args []string
}

// Detect searches PATH for a raw PCM player, preferring pacat, then pw-cat,
// aplay, sox and ffplay.
func Detect(rate int) (Backend, error) {
	r := strconv.Itoa(rate)
	candidates := []Backend{
		{Name: "pacat", Args: []string{"--raw", "--format=s16le", "--rate=" + r, "--channels=2", "--latency-msec=50", "--playback"}},
		{Name: "pw-cat", Args: []string{"--playback", "--format=s16", "--rate=" + r, "--channels=2", "--latency=50ms", "-"}},
		{Name: "aplay", Args: []string{"-t", "raw", "-f", "S16_LE", "-r", r, "-c", "2", "-q"}},
		{Name: "play", Args: []string{"-t", "raw", "-e", "signed", "-b", "16", "-c", "2", "-r", r, "-", "-d", "-q"}},
		{Name: "ffplay", Args: []string{"-nodisp", "-f", "s16le", "-ac", "2", "-ar", r, "-probesize", "32", "-analyzeduration", "0", "-i", "pipe:0", "-loglevel", "quiet"}},
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c.Name); err == nil {
			c.Path = path
			return c, nil
		}
	}
	return Backend{}, ErrNoBackend
}

// Pipe renders the stream in fixed periods and writes it to an external
// player process. If Backend is zero, [Detect] picks one on Start.
type Pipe struct {
	Backend Backend

	// Period is the render period. Zero means 20ms.
	Period time.Duration

	// Output, when set, receives the PCM instead of a player process.
	Output io.Writer

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	stop  chan struct{}
	wg    sync.WaitGroup
}

// Start implements [Device].
func (p *Pipe) Start(src beep.Streamer, rate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return errors.New("device: pipe already started")
	}

	out := p.Output
	if out == nil {
		if p.Backend.Path == "" {
			b, err := Detect(int(rate))
			if err != nil {
				return err
			}
			p.Backend = b
		}
		cmd := exec.Command(p.Backend.Path, p.Backend.Args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("device: %s stdin: %w", p.Backend.Name, err)
		}
		if err := cmd.Start(); err != nil {
			stdin.Close()
			return fmt.Errorf("device: start %s: %w", p.Backend.Name, err)
		}
		p.cmd, p.stdin = cmd, stdin
		out = stdin
		slog.Info("audio pipe started", "backend", p.Backend.Name, "rate", int(rate))
	}

	p.stop = make(chan struct{})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := pump(src, rate, period(p.Period), p.stop, func(frames [][2]float64, buf []byte) ([]byte, error) {
			buf = audio.Encode(buf[:0], frames)
			_, err := out.Write(buf)
			return buf, err
		})
		if err != nil {
			slog.Warn("audio pipe stopped", "backend", p.Backend.Name, "err", err)
		}
	}()
	return nil
}

// Close implements [Device].
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return nil
	}
	close(p.stop)
	var err error
	if p.stdin != nil {
		err = p.stdin.Close()
	}
	p.wg.Wait()
	if p.cmd != nil {
		_ = p.cmd.Wait()
	}
	p.stop, p.cmd, p.stdin = nil, nil, nil
	return err
}

func period(d time.Duration) time.Duration {
	if d <= 0 {
		return 20 * time.Millisecond
	}
	return d
}

// pump renders one period of src every tick and passes it to write until
// stop is closed or write fails.
func pump(src beep.Streamer, rate beep.SampleRate, every time.Duration, stop <-chan struct{}, write func([][2]float64, []byte) ([]byte, error)) error {
	frames := make([][2]float64, max(rate.N(every), 1))
	var buf []byte

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			n, _ := src.Stream(frames)
			clear(frames[n:])
			var err error
			if buf, err = write(frames, buf); err != nil {
				return err
			}
		}
	}
}
