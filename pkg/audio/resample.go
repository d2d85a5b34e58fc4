package audio

// ResampleMono16 converts mono s16le PCM from srcRate to dstRate with linear
// interpolation. Equal rates return pcm unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(pcm) < 2 {
		return pcm
	}
	n := len(pcm) / 2
	out := make([]byte, int(int64(n)*int64(dstRate)/int64(srcRate))*2)
	step := float64(srcRate) / float64(dstRate)

	at := func(i int) float64 {
		return float64(int16(pcm[2*i]) | int16(pcm[2*i+1])<<8)
	}
	for i := range len(out) / 2 {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)
		s0 := at(j)
		s1 := s0
		if j+1 < n {
			s1 = at(j + 1)
		}
		v := int16(s0*(1-frac) + s1*frac)
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
