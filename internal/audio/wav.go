package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

const wavHeaderSize = 44

// EncodeWAV wraps the buffer into a RIFF/WAVE PCM16 container so browsers
// can play it directly.
func EncodeWAV(b *Buffer) []byte {
	channels := b.Format.Channels
	dataSize := b.Frames * channels * bytesPerSample

	out := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))
	out.WriteString("RIFF")
	writeLE(out, uint32(36+dataSize))
	out.WriteString("WAVE")

	out.WriteString("fmt ")
	writeLE(out, uint32(16))
	writeLE(out, uint16(1)) // PCM
	writeLE(out, uint16(channels))
	writeLE(out, uint32(b.Format.SampleRate))
	writeLE(out, uint32(b.Format.SampleRate*channels*bytesPerSample))
	writeLE(out, uint16(channels*bytesPerSample))
	writeLE(out, uint16(bytesPerSample*8))

	out.WriteString("data")
	writeLE(out, uint32(dataSize))
	for frame := 0; frame < b.Frames; frame++ {
		for ch := 0; ch < channels; ch++ {
			writeLE(out, toPCM16(b.channels[ch][frame]))
		}
	}
	return out.Bytes()
}

func toPCM16(v float32) int16 {
	scaled := math.Round(float64(v) * 32768)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

func writeLE(buf *bytes.Buffer, v any) {
	// bytes.Buffer writes never fail
	_ = binary.Write(buf, binary.LittleEndian, v)
}
