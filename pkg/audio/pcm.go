// Package audio holds PCM helpers shared by the speech providers and the
// output devices. Raw audio crosses package boundaries as 16-bit
// little-endian PCM; inside the signal graph it is [][2]float64 frames.
package audio

import (
	"fmt"
	"math"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "22050Hz mono".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// FrameSize returns the number of bytes per s16le frame.
func (f Format) FrameSize() int {
	return 2 * max(f.Channels, 1)
}

// Decode converts s16le PCM into stereo float frames in [-1, 1). Mono input
// is duplicated to both channels; channels beyond the second are dropped.
// A trailing partial frame is ignored.
func Decode(pcm []byte, f Format) [][2]float64 {
	size := f.FrameSize()
	frames := make([][2]float64, len(pcm)/size)
	for i := range frames {
		off := i * size
		l := sample16(pcm[off:])
		r := l
		if f.Channels >= 2 {
			r = sample16(pcm[off+2:])
		}
		frames[i] = [2]float64{l, r}
	}
	return frames
}

// Encode appends frames to dst as interleaved stereo s16le, clipping to
// the int16 range.
func Encode(dst []byte, frames [][2]float64) []byte {
	for _, fr := range frames {
		for _, v := range fr {
			s := int16(math.Round(clip(v) * 32767))
			dst = append(dst, byte(s), byte(s>>8))
		}
	}
	return dst
}

func sample16(b []byte) float64 {
	return float64(int16(b[0])|int16(b[1])<<8) / 32768
}

func clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	case math.IsNaN(v):
		return 0
	}
	return v
}

// Clip is an in-memory sequence of frames that plays once.
// It satisfies beep.StreamSeeker.
type Clip struct {
	frames [][2]float64
	pos    int
}

// NewClip decodes pcm into a Clip.
func NewClip(pcm []byte, f Format) *Clip {
	return &Clip{frames: Decode(pcm, f)}
}

// Stream copies the next frames into samples and drains at the end.
func (c *Clip) Stream(samples [][2]float64) (int, bool) {
	if c.pos >= len(c.frames) {
		return 0, false
	}
	n := copy(samples, c.frames[c.pos:])
	c.pos += n
	return n, true
}

// Err always returns nil.
func (c *Clip) Err() error { return nil }

// Len returns the length in frames.
func (c *Clip) Len() int { return len(c.frames) }

// Position returns the index of the next frame.
func (c *Clip) Position() int { return c.pos }

// Seek moves to frame p, clamped to [0, Len()].
func (c *Clip) Seek(p int) error {
	c.pos = min(max(p, 0), len(c.frames))
	return nil
}
