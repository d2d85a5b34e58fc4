package graph

// Rand is the random source used to fill noise buffers. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// NoiseBuffer returns frames samples of uniform white noise in
// [-scale, scale).
func NoiseBuffer(r Rand, frames int, scale float64) []float64 {
	buf := make([]float64, frames)
	for i := range buf {
		buf[i] = (r.Float64()*2 - 1) * scale
	}
	return buf
}

// BufferSource plays a mono sample buffer on both channels. Without Loop it
// plays the buffer once and then emits silence.
type BufferSource struct {
	Loop bool

	buf []float64
	pos int
}

// NewBufferSource returns a source over buf. The buffer is not copied.
func NewBufferSource(buf []float64, loop bool) *BufferSource {
	return &BufferSource{buf: buf, Loop: loop}
}

// Stream implements [beep.Streamer]. It always fills samples.
func (b *BufferSource) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		if b.pos >= len(b.buf) {
			if !b.Loop || len(b.buf) == 0 {
				clear(samples[i:])
				break
			}
			b.pos = 0
		}
		v := b.buf[b.pos]
		samples[i] = [2]float64{v, v}
		b.pos++
	}
	return len(samples), true
}

// Err implements [beep.Streamer].
func (b *BufferSource) Err() error { return nil }
