package audio

import (
	"encoding/binary"
	"errors"
)

// WAVInfo is the format metadata read from a RIFF/WAVE header.
type WAVInfo struct {
	Format
	DataOffset int // byte offset of the first PCM sample
}

// ParseWAV walks the RIFF chunks in wav and returns the position of the data
// chunk and the format from the "fmt " chunk. It does not assume a fixed
// 44-byte header.
func ParseWAV(wav []byte) (WAVInfo, error) {
	if len(wav) < 12 {
		return WAVInfo{}, errors.New("audio: WAV too short to be a RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return WAVInfo{}, errors.New("audio: WAV missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return WAVInfo{}, errors.New("audio: WAV missing WAVE identifier")
	}

	var info WAVInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch id {
		case "fmt ":
			if size >= 16 && offset+8+16 <= len(wav) {
				body := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
				foundFmt = true
			}
		case "data":
			info.DataOffset = offset + 8
			if !foundFmt {
				info.Format = Format{SampleRate: 22050, Channels: 1}
			}
			return info, nil
		}

		// Chunks are word aligned.
		offset += 8 + size
		if size%2 != 0 {
			offset++
		}
	}
	return WAVInfo{}, errors.New("audio: WAV missing data chunk")
}

// StripWAV returns the PCM payload of wav and its format.
func StripWAV(wav []byte) ([]byte, Format, error) {
	info, err := ParseWAV(wav)
	if err != nil {
		return nil, Format{}, err
	}
	return wav[info.DataOffset:], info.Format, nil
}
