// Package espeak implements speech.Synthesizer on top of the espeak-ng (or
// classic espeak) command-line program. Each utterance runs as its own
// process that plays straight to the system audio device. Pausing stops the
// process with SIGSTOP; cancelling kills it.
package espeak

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/MrWong99/necromancer/pkg/provider/speech"
)

// ErrNotFound is returned by New when no espeak binary is on PATH.
var ErrNotFound = errors.New("espeak: no espeak-ng or espeak binary found")

// Binaries are the program names New looks for, in order.
var Binaries = []string{"espeak-ng", "espeak"}

// Synthesizer runs one espeak process per utterance.
type Synthesizer struct {
	binary string
	voices []speech.Voice

	// command builds the process for one utterance. Tests replace it.
	command func(args ...string) *exec.Cmd

	mu     sync.Mutex
	cmd    *exec.Cmd
	paused bool
}

var _ speech.Synthesizer = (*Synthesizer)(nil)

// New locates an espeak binary and reads its voice list.
func New(ctx context.Context) (*Synthesizer, error) {
	var bin string
	for _, name := range Binaries {
		if p, err := exec.LookPath(name); err == nil {
			bin = p
			break
		}
	}
	if bin == "" {
		return nil, ErrNotFound
	}

	out, err := exec.CommandContext(ctx, bin, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("espeak: list voices: %w", err)
	}
	return newWith(bin, parseVoices(string(out))), nil
}

func newWith(bin string, voices []speech.Voice) *Synthesizer {
	s := &Synthesizer{binary: bin, voices: voices}
	s.command = func(args ...string) *exec.Cmd {
		return exec.Command(s.binary, args...)
	}
	return s
}

// Voices implements speech.Synthesizer.
func (s *Synthesizer) Voices() []speech.Voice {
	return append([]speech.Voice(nil), s.voices...)
}

// Speak implements speech.Synthesizer. The text is fed on stdin so it never
// gets parsed as a flag.
func (s *Synthesizer) Speak(u speech.Utterance) error {
	cmd := s.command(args(u)...)
	cmd.Stdin = strings.NewReader(u.Text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("espeak: start: %w", err)
	}
	s.cmd = cmd
	s.paused = false

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if s.cmd == cmd {
			s.cmd = nil
			s.paused = false
		}
		s.mu.Unlock()
		if err != nil && cmd.ProcessState != nil && !cmd.ProcessState.Exited() {
			return // killed by Cancel
		}
		if err != nil {
			slog.Debug("espeak: utterance failed", "err", err)
		}
	}()
	return nil
}

// Pause implements speech.Synthesizer.
func (s *Synthesizer) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.paused {
		return nil
	}
	if err := suspend(s.cmd.Process); err != nil {
		return err
	}
	s.paused = true
	return nil
}

// Resume implements speech.Synthesizer.
func (s *Synthesizer) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || !s.paused {
		return nil
	}
	if err := resume(s.cmd.Process); err != nil {
		return err
	}
	s.paused = false
	return nil
}

// Cancel implements speech.Synthesizer.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return
	}
	// A stopped process must be continued before it can die on some systems.
	if s.paused {
		_ = resume(s.cmd.Process)
	}
	_ = s.cmd.Process.Kill()
	s.cmd = nil
	s.paused = false
}

// Speaking implements speech.Synthesizer.
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Paused implements speech.Synthesizer.
func (s *Synthesizer) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// args maps an utterance onto espeak flags. Pitch 1 is espeak's default of
// 50, rate 1 is 175 words per minute and volume 1 is amplitude 100.
func args(u speech.Utterance) []string {
	pitch := int(math.Round(speech.Clamp(u.Pitch*50, 0, 99)))
	rate := 175.0
	if u.Rate > 0 {
		rate *= u.Rate
	}
	wpm := int(math.Round(speech.Clamp(rate, 80, 450)))
	amp := int(math.Round(speech.Clamp(u.Volume*100, 0, 200)))

	a := []string{
		"-p", strconv.Itoa(pitch),
		"-s", strconv.Itoa(wpm),
		"-a", strconv.Itoa(amp),
	}
	if u.Voice != nil && u.Voice.ID != "" {
		a = append(a, "-v", u.Voice.ID)
	}
	return a
}

// parseVoices reads the table printed by "espeak-ng --voices":
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
func parseVoices(out string) []speech.Voice {
	var voices []speech.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 5 || f[0] == "Pty" {
			continue
		}
		voices = append(voices, speech.Voice{
			ID:   f[1],
			Name: strings.ReplaceAll(f[3], "_", " "),
			Lang: f[1],
		})
	}
	return voices
}
