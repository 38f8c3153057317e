package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// bytesPerSample is fixed: narration audio is always signed 16-bit PCM.
const bytesPerSample = 2

// Format describes raw little-endian signed 16-bit PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// Mono24K is the format the speech model returns.
var Mono24K = Format{SampleRate: 24000, Channels: 1}

var ErrInvalidFormat = errors.New("invalid pcm format")

// Validate rejects formats that cannot describe any audio.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("%w: rate=%d channels=%d", ErrInvalidFormat, f.SampleRate, f.Channels)
	}
	return nil
}

// FrameSize is the stride in bytes of one interleaved frame.
func (f Format) FrameSize() int {
	return f.Channels * bytesPerSample
}

// Duration returns the playback time of the given number of frames.
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Buffer holds decoded samples normalized to [-1, 1], one slice per channel.
type Buffer struct {
	Format   Format
	Frames   int
	channels [][]float32
}

// Channel returns the samples of channel i, or nil when out of range.
func (b *Buffer) Channel(i int) []float32 {
	if i < 0 || i >= len(b.channels) {
		return nil
	}
	return b.channels[i]
}

// Duration returns how long the buffer plays at its sample rate.
func (b *Buffer) Duration() time.Duration {
	return b.Format.Duration(b.Frames)
}

// Decode converts interleaved PCM16 LE bytes into a Buffer. Bytes past the
// last whole frame are dropped without error.
func Decode(data []byte, f Format) (*Buffer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	frames := len(data) / f.FrameSize()
	channels := make([][]float32, f.Channels)
	for ch := range channels {
		channels[ch] = make([]float32, frames)
	}

	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < f.Channels; ch++ {
			offset := (frame*f.Channels + ch) * bytesPerSample
			sample := int16(binary.LittleEndian.Uint16(data[offset:]))
			channels[ch][frame] = float32(sample) / 32768
		}
	}

	return &Buffer{Format: f, Frames: frames, channels: channels}, nil
}
